/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// AutosaveDirName holds crash snapshots under the data directory.
const AutosaveDirName = "autosave"

const keepAutosaves = 5

// AutosaveCrashSnapshot writes doc to <dir>/autosave/autosave-<timestamp>.json and keeps only the
// newest few snapshots. It returns the written path.
func AutosaveCrashSnapshot(dir string, doc []byte) (string, error) {
	adir := filepath.Join(dir, AutosaveDirName)
	if err := os.MkdirAll(adir, 0o755); err != nil {
		return "", fmt.Errorf("ensure autosave dir: %w", err)
	}
	p := filepath.Join(adir, fmt.Sprintf("autosave-%s.json", now().Format(backupStamp)))
	if err := writeFileSync(p, doc); err != nil {
		return "", fmt.Errorf("write autosave: %w", err)
	}
	all, err := autosaves(adir)
	if err == nil && len(all) > keepAutosaves {
		for _, old := range all[:len(all)-keepAutosaves] {
			_ = os.Remove(old)
		}
	}
	return p, nil
}

// LatestAutosave returns the newest crash snapshot under dir, or "" when there is none.
func LatestAutosave(dir string) (string, error) {
	all, err := autosaves(filepath.Join(dir, AutosaveDirName))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	if len(all) == 0 {
		return "", nil
	}
	return all[len(all)-1], nil
}

func autosaves(adir string) ([]string, error) {
	ents, err := os.ReadDir(adir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range ents {
		if n := e.Name(); strings.HasPrefix(n, "autosave-") && strings.HasSuffix(n, ".json") {
			out = append(out, filepath.Join(adir, n))
		}
	}
	sort.Strings(out)
	return out, nil
}

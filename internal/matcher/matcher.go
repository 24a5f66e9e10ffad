// Package matcher pairs prompt files with the videos generated from them.
//
// A video belongs to a prompt when the video's file name contains the
// prompt's base name. The containment test is a plain substring match, so a
// prompt named run1 also claims run10_video.mp4; callers that need stricter
// pairing should choose non-overlapping prompt names.
package matcher

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// PromptExt is the extension of prompt files.
const PromptExt = ".txt"

// FileInfo is the minimal view of a scanned file.
type FileInfo struct {
	Name    string
	Path    string
	ModTime time.Time
}

// Pair is a prompt and the video chosen for it.
type Pair struct {
	Prompt FileInfo
	Video  FileInfo
}

// Key identifies a pair in a processed set.
type Key struct {
	Prompt string
	Video  string
}

// Key returns the pair's identity.
func (p Pair) Key() Key {
	return Key{Prompt: p.Prompt.Name, Video: p.Video.Name}
}

// Match pairs every prompt modified at or after since with the most recently
// modified video whose name contains the prompt's base name. Ties on
// modification time go to the lexicographically smallest video name. The
// result is sorted by prompt name. Prompts without a candidate are omitted.
func Match(prompts, videos []FileInfo, since time.Time) []Pair {
	pairs := make([]Pair, 0, len(prompts))
	for _, prompt := range prompts {
		if prompt.ModTime.Before(since) {
			continue
		}
		base := strings.TrimSuffix(prompt.Name, filepath.Ext(prompt.Name))
		if base == "" {
			continue
		}
		var (
			best  FileInfo
			found bool
		)
		for _, video := range videos {
			if !strings.Contains(video.Name, base) {
				continue
			}
			if !found || newer(video, best) {
				best = video
				found = true
			}
		}
		if found {
			pairs = append(pairs, Pair{Prompt: prompt, Video: best})
		}
	}
	slices.SortFunc(pairs, func(a, b Pair) int { return strings.Compare(a.Prompt.Name, b.Prompt.Name) })
	return pairs
}

func newer(candidate, current FileInfo) bool {
	if candidate.ModTime.Equal(current.ModTime) {
		return candidate.Name < current.Name
	}
	return candidate.ModTime.After(current.ModTime)
}

// Scan lists prompt files in promptDir and videos with one of exts in
// videoDir. A directory that does not exist yet yields no files.
func Scan(promptDir, videoDir string, exts []string) (prompts, videos []FileInfo, err error) {
	prompts, err = list(promptDir, []string{PromptExt})
	if err != nil {
		return nil, nil, err
	}
	videos, err = list(videoDir, exts)
	if err != nil {
		return nil, nil, err
	}
	return prompts, videos, nil
}

// Latest returns the newest prompt and the newest video regardless of name.
func Latest(prompts, videos []FileInfo) (FileInfo, FileInfo, bool) {
	if len(prompts) == 0 || len(videos) == 0 {
		return FileInfo{}, FileInfo{}, false
	}
	pick := func(files []FileInfo) FileInfo {
		best := files[0]
		for _, f := range files[1:] {
			if newer(f, best) {
				best = f
			}
		}
		return best
	}
	return pick(prompts), pick(videos), true
}

func list(dir string, exts []string) ([]FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	files := make([]FileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if !slices.Contains(exts, strings.ToLower(filepath.Ext(entry.Name()))) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		files = append(files, FileInfo{
			Name:    entry.Name(),
			Path:    filepath.Join(dir, entry.Name()),
			ModTime: info.ModTime(),
		})
	}
	slices.SortFunc(files, func(a, b FileInfo) int { return strings.Compare(a.Name, b.Name) })
	return files, nil
}

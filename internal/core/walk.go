package core

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// WalkFiles returns the absolute paths of every regular file under root,
// depth-first. Symlinks that resolve outside root are skipped rather than
// followed — a save-location directory is user-controlled on a Windows
// host, and nothing in this engine should copy data out of its declared
// root by chasing a symlink.
func WalkFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(p)
			if err != nil {
				return nil // broken symlink, skip
			}
			if AssertWithin("directory walk", root, resolved) != nil {
				return nil // escapes root, skip
			}
			info, err := os.Stat(resolved)
			if err != nil || info.IsDir() {
				return nil
			}
			files = append(files, p)
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		files = append(files, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	return files, nil
}

// DirHasSaveLikeDescendant performs a breadth-first scan of root up to
// depth levels deep, capped at maxEntries total directory entries scanned,
// looking for any file whose extension is in saveExtensions. It is used by
// the candidate scorer (C3 phase 5) to award the "save-like files detected"
// bonus without walking an entire, possibly huge, directory tree.
func DirHasSaveLikeDescendant(root string, depth, maxEntries int, saveExtensions map[string]bool) bool {
	type queued struct {
		path  string
		level int
	}
	queue := []queued{{root, 0}}
	scanned := 0

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		entries, err := os.ReadDir(cur.path)
		if err != nil {
			continue
		}
		for _, e := range entries {
			scanned++
			if scanned > maxEntries {
				return false
			}
			full := filepath.Join(cur.path, e.Name())
			if e.IsDir() {
				if cur.level < depth {
					queue = append(queue, queued{full, cur.level + 1})
				}
				continue
			}
			ext := filepath.Ext(e.Name())
			if len(ext) > 0 {
				ext = ext[1:]
			}
			if saveExtensions[toLowerASCII(ext)] {
				return true
			}
		}
	}
	return false
}

func toLowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

package protocol

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// DefFileName returns "NAME.VERSION.def".
func DefFileName(name string, version int) string {
	return fmt.Sprintf("%s.%d.def", name, version)
}

// ParseDefFileName 解析 "NAME.VERSION.def"。版本不是整數時回傳 ok=false，
// 但 name 仍是第一個點之前的部分（隨附檔依此比對）。
func ParseDefFileName(file string) (name string, version int, ok bool) {
	parts := strings.Split(file, ".")
	name = parts[0]
	if len(parts) != 3 || parts[2] != "def" {
		return name, 0, false
	}
	v, err := strconv.Atoi(parts[1])
	if err != nil {
		return name, 0, false
	}
	return name, v, true
}

// LatestDefinitions 回傳目錄中每個定義名稱的最高版本。目錄不存在時回傳空表。
func LatestDefinitions(dir string) (map[string]int, error) {
	latest := make(map[string]int)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return latest, nil
	}
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name, v, ok := ParseDefFileName(e.Name())
		if !ok {
			continue
		}
		if cur, seen := latest[name]; !seen || v > cur {
			latest[name] = v
		}
	}
	return latest, nil
}

// listFiles returns the regular file names of dir in lexical order.
func listFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

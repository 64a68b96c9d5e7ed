// Package wordlist loads bruteforce wordlists and expands them into
// candidate hostnames. It only generates names; resolution and probing
// happen downstream in the scan pipeline.
package wordlist

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/RowanDark/subhawk/internal/intern"
)

const (
	scannerBufferSize      = 64 * 1024
	maxWordSize            = 4 * 1024 * 1024
	largeWordlistThreshold = 10 * 1024 * 1024
)

// Load reads a wordlist from path. Blank lines and lines starting with '#'
// are skipped. Large files are read through mmap when possible. A leading
// '~' in path expands to the user's home directory.
func Load(path string) ([]string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("wordlist path is required")
	}

	if strings.HasPrefix(path, "~") {
		if homeDir, err := os.UserHomeDir(); err == nil {
			remainder := strings.TrimPrefix(path, "~")
			remainder = strings.TrimPrefix(remainder, string(os.PathSeparator))
			path = filepath.Join(homeDir, remainder)
		}
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}

	size := info.Size()
	if size > largeWordlistThreshold && info.Mode().IsRegular() && size <= int64(^uint(0)>>1) {
		data, err := unix.Mmap(int(file.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_PRIVATE)
		if err == nil {
			words, readErr := readWords(bytes.NewReader(data), int(size))
			_ = unix.Munmap(data)
			if readErr != nil {
				return nil, readErr
			}
			return words, nil
		}
		// fall back to streaming reader if mmap fails
	}

	hint := 0
	if size <= int64(^uint(0)>>1) {
		hint = int(size)
	}
	return readWords(file, hint)
}

func readWords(r io.Reader, sizeHint int) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Split(bufio.ScanLines)
	scanner.Buffer(make([]byte, scannerBufferSize), maxWordSize)

	capacity := 256
	if sizeHint <= 0 {
		if statter, ok := r.(interface{ Stat() (fs.FileInfo, error) }); ok {
			if info, err := statter.Stat(); err == nil {
				sizeHint = int(info.Size())
			}
		}
	}
	if sizeHint > 0 {
		estimate := sizeHint / 8
		if estimate > capacity {
			capacity = estimate
		}
	}

	seen := make(map[string]struct{}, capacity)
	words := make([]string, 0, capacity)
	for scanner.Scan() {
		word := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if word == "" || strings.HasPrefix(word, "#") {
			continue
		}
		if _, ok := seen[word]; ok {
			continue
		}
		seen[word] = struct{}{}
		words = append(words, intern.Intern(word))
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	sort.Strings(words)
	return words, nil
}

// Generate expands words into candidate hostnames under domain. With
// permutations enabled, each word also produces numeric variants
// (word1, 1word, word-1, ...).
func Generate(domain string, words []string, permutations bool) []string {
	domain = strings.TrimSuffix(strings.TrimSpace(strings.ToLower(domain)), ".")
	if domain == "" || len(words) == 0 {
		return nil
	}

	labels := buildLabels(words, permutations)

	hostnames := make([]string, 0, len(labels))
	for _, label := range labels {
		var builder strings.Builder
		builder.Grow(len(label) + 1 + len(domain))
		builder.WriteString(label)
		builder.WriteByte('.')
		builder.WriteString(domain)
		hostnames = append(hostnames, intern.Intern(builder.String()))
	}
	return hostnames
}

func buildLabels(words []string, permutations bool) []string {
	seen := make(map[string]struct{}, len(words))
	labels := make([]string, 0, len(words))

	addLabel := func(candidate string) {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			return
		}
		candidate = intern.Intern(candidate)
		if _, exists := seen[candidate]; exists {
			return
		}
		seen[candidate] = struct{}{}
		labels = append(labels, candidate)
	}

	for _, word := range words {
		label := strings.ToLower(strings.TrimSpace(word))
		if label == "" {
			continue
		}
		addLabel(label)
		if permutations {
			for _, perm := range permutationsFor(label) {
				addLabel(perm)
			}
		}
	}

	return labels
}

func permutationsFor(label string) []string {
	variants := make([]string, 0, 400)
	for _, num := range numberVariants() {
		variants = append(variants,
			label+num,
			num+label,
			label+"-"+num,
			num+"-"+label,
		)
	}
	return variants
}

func numberVariants() []string {
	variants := make([]string, 0, 100)
	for i := 0; i <= 99; i++ {
		variants = append(variants, fmt.Sprintf("%d", i))
	}
	return variants
}

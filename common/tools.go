package common

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

func Min(a, b int) int {
	if a > b {
		return b
	}
	return a
}

func Bytes2Sha256(b []byte, salt []byte) [32]byte {
	h := sha256.New()
	h.Write(b)
	if len(salt) > 0 {
		h.Write(salt)
	}
	var hash [32]byte
	copy(hash[:], h.Sum(nil))
	return hash
}

func StringToUUID5(str string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(str)).String()
}

func HomeExpand(path string) (string, error) {
	if path == "" {
		return path, nil
	}
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, path[1:]), nil
}

func ParseInt64List(raw string) ([]int64, error) {
	var res []int64
	for _, field := range strings.Split(raw, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		var id int64
		if _, err := fmt.Sscanf(field, "%d", &id); err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", field, err)
		}
		res = append(res, id)
	}
	return res, nil
}

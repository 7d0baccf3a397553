package utils

import (
	"fmt"
	"strconv"
	"strings"
)

type VersionNumber struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
	Micro int `json:"micro"`
}

func (v VersionNumber) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Micro)
}

/**
 * Parse version string into VersionNumber struct
 * @param {string} versionStr - Version string such as "1.2.3" or "v18.19.0"
 * @returns {*VersionNumber} Pointer to VersionNumber struct if parse succeeds, nil on failure
 * @description
 * - Accepts an optional leading "v" and surrounding whitespace (node --version output)
 * - Missing minor/micro parts are treated as zero
 * @example
 * ver := ParseVersionNumber("v18.19.0")  // returns VersionNumber{Major:18, Minor:19, Micro:0}
 * ver := ParseVersionNumber("invalid") // returns nil
 */
func ParseVersionNumber(versionStr string) *VersionNumber {
	versionStr = strings.TrimPrefix(strings.TrimSpace(versionStr), "v")
	vers := strings.Split(versionStr, ".")
	if len(vers) == 0 || len(vers) > 3 {
		return nil
	}

	var parts [3]int
	for i, s := range vers {
		// 去掉预发布后缀，例如 "0-rc1"
		if idx := strings.IndexAny(s, "-+"); idx >= 0 {
			s = s[:idx]
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil
		}
		parts[i] = n
	}
	return &VersionNumber{Major: parts[0], Minor: parts[1], Micro: parts[2]}
}

// CompareVersion returns -1, 0 or 1
func CompareVersion(a, b VersionNumber) int {
	switch {
	case a.Major != b.Major:
		return sign(a.Major - b.Major)
	case a.Minor != b.Minor:
		return sign(a.Minor - b.Minor)
	default:
		return sign(a.Micro - b.Micro)
	}
}

func sign(n int) int {
	if n < 0 {
		return -1
	}
	if n > 0 {
		return 1
	}
	return 0
}

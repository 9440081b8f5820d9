package common

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Version is set via ldflags at build time:
// -ldflags "-X github.com/Alia5/tpm2gen/internal/codegen/common.Version=x.y.z"
var Version = ""

// GetVersion returns the version string that was set at build time via ldflags.
// Returns "0.0.1-dev" if Version is empty (development builds only).
func GetVersion() (string, error) {
	if Version == "" {
		return "0.0.1-dev", nil
	}

	version := strings.TrimPrefix(Version, "v")
	baseVersion := strings.SplitN(version, "-", 2)[0]
	if !strings.Contains(baseVersion, ".") {
		return "", fmt.Errorf("invalid version format: %s (expected x.y.z)", Version)
	}

	return version, nil
}

// ParseVersion extracts major, minor, patch from version string like "1.2.3" or "1.2.3-dirty"
func ParseVersion(version string) (major, minor, patch int) {
	version = strings.SplitN(version, "-", 2)[0]

	nums := strings.Split(version, ".")
	if len(nums) >= 1 {
		major, _ = strconv.Atoi(nums[0])
	}
	if len(nums) >= 2 {
		minor, _ = strconv.Atoi(nums[1])
	}
	if len(nums) >= 3 {
		patch, _ = strconv.Atoi(nums[2])
	}
	return
}

const (
	stampPrefix  = "// Generated by tpm2gen "
	digestPrefix = "// " + DigestPrefix
)

// ErrNoStamp is returned when a file carries no generator stamp.
var ErrNoStamp = errors.New("no tpm2gen stamp")

// Stamp identifies the generator version and the inputs a file was
// generated from.
type Stamp struct {
	Version string
	Digest  string
}

// Lines renders the stamp as two C comment lines. The digest line stays
// under 80 columns so clang-format leaves it alone.
func (s Stamp) Lines() string {
	return fmt.Sprintf("%s%s from\n// %s", stampPrefix, s.Version, s.Digest)
}

// ReadStamp finds the stamp in the leading comment block of src.
func ReadStamp(src []byte) (Stamp, error) {
	var s Stamp
	sc := bufio.NewScanner(bytes.NewReader(src))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "//") {
			break
		}
		if rest, ok := strings.CutPrefix(line, stampPrefix); ok {
			s.Version, _, _ = strings.Cut(rest, " ")
			continue
		}
		if s.Version != "" && strings.HasPrefix(line, digestPrefix) {
			s.Digest = strings.TrimPrefix(line, "// ")
			return s, nil
		}
	}
	if s.Version != "" {
		return Stamp{}, fmt.Errorf("stamp for %s has no digest", s.Version)
	}
	return Stamp{}, ErrNoStamp
}

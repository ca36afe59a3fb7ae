package appupdate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrNoUpdate is returned when no manifest or APK is published.
var ErrNoUpdate = errors.New("appupdate: no update published")

const manifestFile = "update-info.json"

// Manifest mirrors update-info.json dropped next to the APK by the release
// script.
type Manifest struct {
	Version      string `json:"version"`
	APKFile      string `json:"apkFile"`
	ReleaseNotes string `json:"releaseNotes"`
	Checksum     string `json:"checksum"`
}

// CheckResult is returned to a terminal asking whether to update.
type CheckResult struct {
	UpdateAvailable bool   `json:"updateAvailable"`
	LatestVersion   string `json:"latestVersion"`
	DownloadURL     string `json:"downloadUrl,omitempty"`
	FileSize        int64  `json:"fileSize,omitempty"`
	ReleaseNotes    string `json:"releaseNotes,omitempty"`
	Checksum        string `json:"checksum,omitempty"`
}

// Service reads the update manifest from the APK directory on every call, so
// publishing a new build needs no restart.
type Service struct {
	apkDir string
}

// NewService builds Service.
func NewService(apkDir string) *Service {
	return &Service{apkDir: apkDir}
}

// Check compares the terminal's version against the published manifest.
func (s *Service) Check(currentVersion string) (CheckResult, error) {
	manifest, size, err := s.load()
	if err != nil {
		return CheckResult{}, err
	}
	result := CheckResult{LatestVersion: manifest.Version}
	if versionLess(currentVersion, manifest.Version) {
		result.UpdateAvailable = true
		result.DownloadURL = "/api/app-update/download"
		result.FileSize = size
		result.ReleaseNotes = manifest.ReleaseNotes
		result.Checksum = manifest.Checksum
	}
	return result, nil
}

// APKPath returns the path of the published APK for streaming.
func (s *Service) APKPath() (string, error) {
	manifest, _, err := s.load()
	if err != nil {
		return "", err
	}
	return filepath.Join(s.apkDir, manifest.APKFile), nil
}

func (s *Service) load() (Manifest, int64, error) {
	raw, err := os.ReadFile(filepath.Join(s.apkDir, manifestFile))
	if err != nil {
		return Manifest{}, 0, fmt.Errorf("%w: %v", ErrNoUpdate, err)
	}
	var manifest Manifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return Manifest{}, 0, fmt.Errorf("%w: malformed manifest", ErrNoUpdate)
	}
	if manifest.Version == "" || manifest.APKFile == "" {
		return Manifest{}, 0, fmt.Errorf("%w: incomplete manifest", ErrNoUpdate)
	}
	info, err := os.Stat(filepath.Join(s.apkDir, manifest.APKFile))
	if err != nil {
		return Manifest{}, 0, fmt.Errorf("%w: apk missing", ErrNoUpdate)
	}
	return manifest, info.Size(), nil
}

// versionLess compares dotted numeric versions segment by segment. Missing
// segments count as zero; non-numeric segments compare as zero.
func versionLess(current, latest string) bool {
	cur := strings.Split(current, ".")
	lat := strings.Split(latest, ".")
	n := len(cur)
	if len(lat) > n {
		n = len(lat)
	}
	for i := 0; i < n; i++ {
		c := segment(cur, i)
		l := segment(lat, i)
		if c != l {
			return c < l
		}
	}
	return false
}

func segment(parts []string, i int) int {
	if i >= len(parts) {
		return 0
	}
	value, err := strconv.Atoi(strings.TrimSpace(parts[i]))
	if err != nil {
		return 0
	}
	return value
}

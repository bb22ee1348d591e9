package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

// questionHash is SHA-256 of the trimmed, lowercased question, per §4.3 —
// ported from generate_question_hash in conversation_gateway.rs.
func questionHash(question string) string {
	normalized := strings.ToLower(strings.TrimSpace(question))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// usageProof is HMAC-SHA256(conversationToken, conversationID + ":" +
// questionHash) rendered as lowercase hex, per §4.3 — ported from
// generate_usage_proof.
func usageProof(conversationToken, conversationID, qHash string) string {
	mac := hmac.New(sha256.New, []byte(conversationToken))
	mac.Write([]byte(conversationID + ":" + qHash))
	return hex.EncodeToString(mac.Sum(nil))
}

// machineIdentity is the canonical JSON shape hashed for both
// installationID and deviceFingerprint, ported from the original's
// machine_data/device_data json! blocks.
type machineIdentity struct {
	Hostname string `json:"hostname"`
	Platform string `json:"platform"`
	Arch     string `json:"arch"`
	Homedir  string `json:"homedir"`
	Username string `json:"username"`
	OSRelease string `json:"os_version"`
}

// installationID is the first 16 hex chars of SHA-256 over the canonical
// machine identity, per §4.3.
func installationID() string {
	hostname, _ := os.Hostname()
	username := os.Getenv("USER")
	if username == "" {
		username = os.Getenv("USERNAME")
	}
	homedir, _ := os.UserHomeDir()

	osRelease := ""
	if info, err := host.Info(); err == nil {
		osRelease = info.PlatformVersion
	}

	data, _ := json.Marshal(machineIdentity{
		Hostname:  hostname,
		Platform:  runtime.GOOS,
		Arch:      runtime.GOARCH,
		Homedir:   homedir,
		Username:  username,
		OSRelease: osRelease,
	})
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}

type deviceIdentity struct {
	Platform string `json:"platform"`
	Arch     string `json:"arch"`
	Release  string `json:"release"`
	CPUs     int    `json:"cpus"`
	MemoryMB int64  `json:"memory"`
}

// deviceFingerprint is the first 32 hex chars of SHA-256 over {platform,
// arch, os release, cpu count, total memory in MiB}, per §4.3. Memory and
// OS release are read via gopsutil, the pack-wide (teleport, tarsy) portable
// equivalent of the original's `sysinfo` crate; CPU count uses
// runtime.NumCPU() since gopsutil's cpu.Counts does the same stat lookup
// with extra allocation this call doesn't need.
func deviceFingerprint() string {
	release := ""
	var memoryMB int64
	if info, err := host.Info(); err == nil {
		release = info.PlatformVersion
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		memoryMB = int64(vm.Total / 1024 / 1024)
	}

	data, _ := json.Marshal(deviceIdentity{
		Platform: runtime.GOOS,
		Arch:     runtime.GOARCH,
		Release:  release,
		CPUs:     runtime.NumCPU(),
		MemoryMB: memoryMB,
	})
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:32]
}

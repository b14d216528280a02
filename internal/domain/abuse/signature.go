package abuse

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
)

// deviceHeaders are the stable client headers hashed into a device
// signature. They survive origin and proxy rotation.
var deviceHeaders = []string{
	"User-Agent",
	"Accept-Language",
	"Accept-Encoding",
	"Sec-Ch-Ua",
	"Sec-Ch-Ua-Platform",
}

// DeviceSignature derives a device fingerprint from stable request headers.
func DeviceSignature(r *http.Request) string {
	h := sha256.New()
	for _, name := range deviceHeaders {
		h.Write([]byte(name))
		h.Write([]byte{0})
		h.Write([]byte(r.Header.Get(name)))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Origin extracts the network origin of a request, preferring the first
// X-Forwarded-For hop when present.
func Origin(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

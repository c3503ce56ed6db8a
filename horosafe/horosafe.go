// Package horosafe holds the input guards structura applies at its edges:
// upload file names, export paths, theme identifiers, outbound URLs and
// bounded reads.
package horosafe

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"path/filepath"
	"strings"
	"unicode"
)

var (
	ErrPathTraversal = errors.New("horosafe: path traversal detected")
	ErrSSRF          = errors.New("horosafe: URL targets a private or loopback address")
	ErrUnsafeScheme  = errors.New("horosafe: only http and https schemes are allowed")
	ErrTooLarge      = errors.New("horosafe: input exceeds limit")
)

// SafePath joins base and a user supplied relative path, refusing anything
// that would land outside base.
func SafePath(base, userInput string) (string, error) {
	if strings.Contains(userInput, "..") {
		return "", ErrPathTraversal
	}
	root := filepath.Clean(base)
	joined := filepath.Join(root, filepath.Clean("/"+userInput))
	if joined != root && !strings.HasPrefix(joined, root+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}
	return joined, nil
}

// SafeFilename reduces an uploaded file name to its base name with only
// letters, digits, dot, dash and underscore. Other runes become '_'.
// An empty or dot-only result becomes "upload".
func SafeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	var b strings.Builder
	for _, r := range name {
		if isIdentChar(r) || unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	if out == "" {
		return "upload"
	}
	if len(out) > 200 {
		ext := filepath.Ext(out)
		out = out[:200-len(ext)] + ext
	}
	return out
}

// ValidateIdentifier accepts ASCII letters, digits, '_', '-' and '.' up to
// 128 characters. Theme ids and export labels go through it.
func ValidateIdentifier(s string) error {
	if s == "" {
		return errors.New("horosafe: identifier must not be empty")
	}
	if len(s) > 128 {
		return errors.New("horosafe: identifier too long (max 128)")
	}
	for _, r := range s {
		if !isIdentChar(r) {
			return fmt.Errorf("horosafe: invalid character %q in identifier", r)
		}
	}
	return nil
}

// ValidateURL requires http(s), a host, and no private or loopback target.
// Hostnames are resolved; a failed lookup is let through since the dial
// will fail anyway.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("horosafe: invalid URL: %w", err)
	}
	if s := strings.ToLower(u.Scheme); s != "http" && s != "https" {
		return ErrUnsafeScheme
	}
	host := u.Hostname()
	if host == "" {
		return errors.New("horosafe: URL has no host")
	}
	if ip := net.ParseIP(host); ip != nil {
		if isPrivateIP(ip) {
			return ErrSSRF
		}
		return nil
	}
	addrs, err := net.LookupHost(host)
	if err != nil {
		return nil
	}
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && isPrivateIP(ip) {
			return ErrSSRF
		}
	}
	return nil
}

// LimitedReadAll reads r fully, failing with ErrTooLarge past maxBytes.
func LimitedReadAll(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, maxBytes)
	}
	return data, nil
}

func isIdentChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '_' || r == '-' || r == '.'
}

var privateNets = func() []*net.IPNet {
	var out []*net.IPNet
	for _, cidr := range []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "169.254.0.0/16", "fc00::/7"} {
		_, n, _ := net.ParseCIDR(cidr)
		out = append(out, n)
	}
	return out
}()

func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
		return true
	}
	for _, n := range privateNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

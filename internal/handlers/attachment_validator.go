package handlers

import (
	"errors"
	"net/url"
	"strings"

	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/models"
)

// Maximum URL length to prevent abuse
const maxAttachmentURLLength = 2048

// AttachmentPolicy decides which attachment URLs a message may carry. An empty
// host list accepts any HTTPS host.
type AttachmentPolicy struct {
	Hosts []string
}

// NewAttachmentPolicy allows the storage public URL's host plus extra hosts
func NewAttachmentPolicy(publicURL string, extra ...string) AttachmentPolicy {
	var hosts []string
	if u, err := url.Parse(publicURL); err == nil && u.Hostname() != "" {
		hosts = append(hosts, u.Hostname())
	}
	hosts = append(hosts, "r2.dev")
	return AttachmentPolicy{Hosts: append(hosts, extra...)}
}

// Validate checks that the attachment points at an allowed HTTPS location
func (p AttachmentPolicy) Validate(att models.Attachment) error {
	raw := strings.TrimSpace(att.URL)
	if raw == "" {
		return errors.New("attachment URL cannot be empty")
	}
	if len(raw) > maxAttachmentURLLength {
		return errors.New("attachment URL too long (max 2048 characters)")
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return errors.New("invalid attachment URL format")
	}
	// Only HTTPS, which also rules out javascript: and data: URLs
	if parsed.Scheme != "https" || parsed.Host == "" {
		return errors.New("only HTTPS attachment URLs are allowed")
	}
	if strings.ContainsAny(raw, "<>\"") {
		return errors.New("unsafe attachment URL detected")
	}
	if att.Size < 0 {
		return errors.New("attachment size cannot be negative")
	}

	if len(p.Hosts) == 0 || p.hostAllowed(parsed.Hostname()) {
		return nil
	}
	return errors.New("attachment host is not allowed")
}

func (p AttachmentPolicy) hostAllowed(host string) bool {
	host = strings.ToLower(host)
	for _, allowed := range p.Hosts {
		allowed = strings.ToLower(allowed)
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}

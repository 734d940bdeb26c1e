package core

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	authorizePath = "/admin/oauth/authorize"
	tokenPath     = "/admin/oauth/access_token"
	graphqlPath   = "/admin/api/%s/graphql.json"
)

// AccessCredential is the platform access token handed back by the token
// endpoint. The proxy never persists it; the calling layer owns its lifetime.
type AccessCredential struct {
	Token string
	Scope string
}

func (c AccessCredential) Validate() error {
	if strings.TrimSpace(c.Token) == "" {
		return fmt.Errorf("core: access token is required")
	}
	return nil
}

// UploadParameter is one signed-policy form field returned by a staged upload
// target. Order matters: object-storage policy checks validate field order.
type UploadParameter struct {
	Name  string
	Value string
}

// StagedUploadTarget is the pre-authorized destination returned by phase one
// of the upload pipeline. It is used exactly once, within a single run.
type StagedUploadTarget struct {
	UploadURL   string
	ResourceURL string
	Parameters  []UploadParameter
}

func (t StagedUploadTarget) Validate() error {
	if strings.TrimSpace(t.UploadURL) == "" {
		return fmt.Errorf("core: staged target upload url is required")
	}
	if strings.TrimSpace(t.ResourceURL) == "" {
		return fmt.Errorf("core: staged target resource url is required")
	}
	return nil
}

// RemoteFile is the platform file record created by the final pipeline phase.
// PreviewURL may be empty right after creation while the platform is still
// transcoding.
type RemoteFile struct {
	ID         string
	PreviewURL string
}

type UploadRequest struct {
	Credential AccessCredential
	ShopDomain string
	Filename   string
	MimeType   string
	Data       []byte
}

func (r UploadRequest) Validate() error {
	if err := r.Credential.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(r.ShopDomain) == "" {
		return fmt.Errorf("core: shop domain is required")
	}
	if strings.TrimSpace(r.Filename) == "" {
		return fmt.Errorf("core: filename is required")
	}
	if len(r.Data) == 0 {
		return fmt.Errorf("core: file data is required")
	}
	return nil
}

type UploadResult struct {
	FileID     string
	URL        string
	PreviewURL string
}

// NormalizeShopDomain reduces any accepted shop spelling to a bare hostname:
// "https://shop.example.com/", "http://shop.example.com" and
// "shop.example.com" all normalize to "shop.example.com".
func NormalizeShopDomain(value string) (string, error) {
	trimmed := strings.TrimSpace(strings.ToLower(value))
	if trimmed == "" {
		return "", fmt.Errorf("core: shop domain is required")
	}
	if strings.Contains(trimmed, "://") {
		parsed, err := url.Parse(trimmed)
		if err != nil {
			return "", fmt.Errorf("core: parse shop domain: %w", err)
		}
		trimmed = strings.TrimSpace(strings.ToLower(parsed.Hostname()))
	}
	for strings.HasSuffix(trimmed, "/") {
		trimmed = strings.TrimSuffix(trimmed, "/")
	}
	if trimmed == "" || strings.Contains(trimmed, "/") {
		return "", fmt.Errorf("core: invalid shop domain %q", value)
	}
	return trimmed, nil
}

// AuthorizeURL returns the shop's OAuth authorization endpoint.
func AuthorizeURL(shopDomain string) (string, error) {
	return adminURL(shopDomain, authorizePath)
}

// TokenURL returns the shop's OAuth token endpoint.
func TokenURL(shopDomain string) (string, error) {
	return adminURL(shopDomain, tokenPath)
}

// GraphQLURL returns the shop's Admin API GraphQL endpoint for a version.
func GraphQLURL(shopDomain string, apiVersion string) (string, error) {
	version := strings.TrimSpace(apiVersion)
	if version == "" {
		version = DefaultAPIVersion
	}
	return adminURL(shopDomain, fmt.Sprintf(graphqlPath, version))
}

func adminURL(shopDomain string, path string) (string, error) {
	domain, err := NormalizeShopDomain(shopDomain)
	if err != nil {
		return "", err
	}
	return (&url.URL{Scheme: "https", Host: domain, Path: path}).String(), nil
}

package core

import (
	"strings"
	"testing"
)

func TestNormalizeShopDomain(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "bare hostname", input: "shop.example.com", want: "shop.example.com"},
		{name: "https scheme", input: "https://shop.example.com", want: "shop.example.com"},
		{name: "http scheme with trailing slash", input: "http://shop.example.com/", want: "shop.example.com"},
		{name: "uppercase", input: "HTTPS://Shop.Example.COM", want: "shop.example.com"},
		{name: "surrounding whitespace", input: "  shop.example.com  ", want: "shop.example.com"},
		{name: "empty", input: "   ", wantErr: true},
		{name: "path segment", input: "shop.example.com/admin", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeShopDomain(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got %q", tc.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("normalize %q: %v", tc.input, err)
			}
			if got != tc.want {
				t.Fatalf("normalize %q = %q, want %q", tc.input, got, tc.want)
			}

			again, err := NormalizeShopDomain(got)
			if err != nil {
				t.Fatalf("re-normalize %q: %v", got, err)
			}
			if again != got {
				t.Fatalf("normalization not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestAdminURLBuilders(t *testing.T) {
	authorize, err := AuthorizeURL("https://shop.example.com/")
	if err != nil {
		t.Fatalf("authorize url: %v", err)
	}
	if authorize != "https://shop.example.com/admin/oauth/authorize" {
		t.Fatalf("unexpected authorize url %q", authorize)
	}

	token, err := TokenURL("shop.example.com")
	if err != nil {
		t.Fatalf("token url: %v", err)
	}
	if token != "https://shop.example.com/admin/oauth/access_token" {
		t.Fatalf("unexpected token url %q", token)
	}

	graphql, err := GraphQLURL("shop.example.com", "")
	if err != nil {
		t.Fatalf("graphql url: %v", err)
	}
	if !strings.Contains(graphql, "/admin/api/"+DefaultAPIVersion+"/graphql.json") {
		t.Fatalf("expected default api version in %q", graphql)
	}

	if _, err := AuthorizeURL(""); err == nil {
		t.Fatalf("expected error for empty shop domain")
	}
}

func TestUploadRequestValidate(t *testing.T) {
	valid := UploadRequest{
		Credential: AccessCredential{Token: "shpat_test"},
		ShopDomain: "shop.example.com",
		Filename:   "hero.jpg",
		MimeType:   "image/jpeg",
		Data:       []byte{0xFF, 0xD8},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}

	missingToken := valid
	missingToken.Credential = AccessCredential{}
	if err := missingToken.Validate(); err == nil {
		t.Fatalf("expected error for missing access token")
	}

	missingData := valid
	missingData.Data = nil
	if err := missingData.Validate(); err == nil {
		t.Fatalf("expected error for empty file data")
	}
}

package auth

import "testing"

func TestTokenRoundTrip(t *testing.T) {
	InitJWT("test-secret")

	token, err := GenerateToken("admin", 3600)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	claims, err := ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Username != "admin" {
		t.Errorf("Username = %q, want %q", claims.Username, "admin")
	}
	if claims.Issuer != "rainyun-autosign" {
		t.Errorf("Issuer = %q", claims.Issuer)
	}
}

func TestParseTokenGarbage(t *testing.T) {
	InitJWT("test-secret")

	if _, err := ParseToken("not.a.token"); err == nil {
		t.Error("乱码令牌应解析失败")
	}
	if _, err := ParseToken(""); err == nil {
		t.Error("空令牌应解析失败")
	}
}

func TestParseTokenWrongSecret(t *testing.T) {
	InitJWT("secret-one")
	token, err := GenerateToken("admin", 3600)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	InitJWT("secret-two")
	if _, err := ParseToken(token); err == nil {
		t.Error("签名密钥不一致的令牌应解析失败")
	}
}

func TestParseTokenExpired(t *testing.T) {
	InitJWT("test-secret")
	token, err := GenerateToken("admin", -60)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	if _, err := ParseToken(token); err == nil {
		t.Error("过期令牌应解析失败")
	}
}

package util

import (
	"online_exam_backend/internal/model"
	"testing"
	"time"
)

func TestJWTRoundTrip(t *testing.T) {
	user := &model.User{BaseModel: model.BaseModel{ID: 7}, Email: "alice@example.com", IsAdmin: true}

	token, err := GenerateJWT(user, "secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := ParseJWT(token, "secret")
	if err != nil {
		t.Fatal(err)
	}
	if claims.UserID != 7 || !claims.IsAdmin || claims.Email != "alice@example.com" || claims.Subject != "7" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestParseJWTRejects(t *testing.T) {
	user := &model.User{BaseModel: model.BaseModel{ID: 7}}
	valid, err := GenerateJWT(user, "secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	expired, err := GenerateJWT(user, "secret", -time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name, token, secret string
	}{
		{"wrong secret", valid, "other"},
		{"expired", expired, "secret"},
		{"garbage", "not.a.token", "secret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseJWT(tt.token, tt.secret); err == nil {
				t.Error("expected error")
			}
		})
	}
}

package video

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestRoomTokenCarriesRoomAndIdentity(t *testing.T) {
	svc := New("sfu-secret", time.Hour)

	token, err := svc.RoomToken("halaqa-1", "user-1", "Ahmad", true)
	if err != nil {
		t.Fatalf("room token: %v", err)
	}

	parsed, err := jwt.ParseWithClaims(token, &roomClaims{}, func(*jwt.Token) (interface{}, error) {
		return []byte("sfu-secret"), nil
	})
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	claims, ok := parsed.Claims.(*roomClaims)
	if !ok || !parsed.Valid {
		t.Fatal("invalid token claims")
	}
	if claims.Room != "halaqa-1" || claims.Identity != "user-1" || !claims.Moderate {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestRoomTokenRequiresSecret(t *testing.T) {
	svc := New("", time.Hour)
	if _, err := svc.RoomToken("halaqa-1", "user-1", "Ahmad", false); err != ErrNotConfigured {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

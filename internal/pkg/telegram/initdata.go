package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidInitData = errors.New("invalid init data")
	ErrExpiredInitData = errors.New("init data expired")
)

// WebAppUser is the user object embedded in Mini App init data
type WebAppUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// InitData is the verified payload of a Mini App launch
type InitData struct {
	User     WebAppUser
	AuthDate time.Time
	StartParam string
}

// VerifyInitData validates the Mini App initData signature against the bot
// token and returns the parsed payload. maxAge of 0 disables the age check.
//
// Signature scheme per Telegram docs: secret = HMAC_SHA256("WebAppData",
// botToken); hash = hex(HMAC_SHA256(secret, dataCheckString)) where
// dataCheckString is all fields except hash, sorted, joined by newlines.
func VerifyInitData(initData, botToken string, maxAge time.Duration) (*InitData, error) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, ErrInvalidInitData
	}

	gotHash := values.Get("hash")
	if gotHash == "" {
		return nil, ErrInvalidInitData
	}

	pairs := make([]string, 0, len(values))
	for key := range values {
		if key == "hash" {
			continue
		}
		pairs = append(pairs, key+"="+values.Get(key))
	}
	sort.Strings(pairs)
	dataCheckString := strings.Join(pairs, "\n")

	secretMAC := hmac.New(sha256.New, []byte("WebAppData"))
	secretMAC.Write([]byte(botToken))
	secret := secretMAC.Sum(nil)

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(dataCheckString))
	wantHash := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(wantHash), []byte(gotHash)) {
		return nil, ErrInvalidInitData
	}

	authUnix, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
	if err != nil {
		return nil, ErrInvalidInitData
	}
	authDate := time.Unix(authUnix, 0)
	if maxAge > 0 && time.Since(authDate) > maxAge {
		return nil, ErrExpiredInitData
	}

	var user WebAppUser
	if raw := values.Get("user"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &user); err != nil {
			return nil, ErrInvalidInitData
		}
	}
	if user.ID == 0 {
		return nil, ErrInvalidInitData
	}

	return &InitData{
		User:       user,
		AuthDate:   authDate,
		StartParam: values.Get("start_param"),
	}, nil
}

package auth

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/pquerna/otp"

	"finquest/internal/api"
)

const issuer = "FinQuest"

// Provisioning is what an authenticator app needs to enroll the account.
type Provisioning struct {
	Issuer      string
	Account     string
	Secret      string
	Digits      int
	Period      uint64
	URL         string
	BackupCodes []string
}

// ParseProvisioning reads the otpauth URI the backend returns in qr_code. When
// qr_code is an image instead, the URI is rebuilt from the bare secret.
func ParseProvisioning(setup *api.TwoFASetup, account string) (Provisioning, error) {
	if setup == nil {
		return Provisioning{}, fmt.Errorf("2fa setup: empty response")
	}
	raw := strings.TrimSpace(setup.QRCode)
	if !strings.HasPrefix(raw, "otpauth://") {
		if setup.Secret == "" {
			return Provisioning{}, fmt.Errorf("2fa setup: response carries neither uri nor secret")
		}
		raw = buildURI(setup.Secret, account)
	}
	key, err := otp.NewKeyFromURL(raw)
	if err != nil {
		return Provisioning{}, fmt.Errorf("2fa setup: parse uri: %w", err)
	}
	if key.Secret() == "" {
		return Provisioning{}, fmt.Errorf("2fa setup: uri has no secret")
	}
	return Provisioning{
		Issuer:      key.Issuer(),
		Account:     key.AccountName(),
		Secret:      key.Secret(),
		Digits:      digitsOf(key),
		Period:      key.Period(),
		URL:         key.URL(),
		BackupCodes: append([]string(nil), setup.BackupCodes...),
	}, nil
}

func digitsOf(key *otp.Key) int {
	u, err := url.Parse(key.URL())
	if err != nil {
		return int(otp.DigitsSix)
	}
	if n, err := strconv.Atoi(u.Query().Get("digits")); err == nil && n > 0 {
		return n
	}
	return int(otp.DigitsSix)
}

func buildURI(secret, account string) string {
	if account == "" {
		account = "account"
	}
	v := url.Values{}
	v.Set("secret", strings.ToUpper(strings.ReplaceAll(secret, " ", "")))
	v.Set("issuer", issuer)
	u := url.URL{
		Scheme:   "otpauth",
		Host:     "totp",
		Path:     "/" + issuer + ":" + account,
		RawQuery: v.Encode(),
	}
	return u.String()
}

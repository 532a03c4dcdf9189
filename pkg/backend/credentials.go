package backend

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/GeertJohan/yubigo"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"

	"github.com/lightldap/lightldap/pkg/config"
)

const (
	yubikeyOTPLength = 44
	yubikeyIDLength  = 12
	totpLength       = 6
)

func sha256Hex(pw string) string {
	sum := sha256.Sum256([]byte(pw))
	return hex.EncodeToString(sum[:])
}

func bcryptMatches(hexHash, pw string) bool {
	decoded, err := hex.DecodeString(hexHash)
	if err != nil {
		return false
	}
	return bcrypt.CompareHashAndPassword(decoded, []byte(pw)) == nil
}

// checkPassword validates pw for user. App passwords are compared against
// the full input and skip OTP. Otherwise a yubikey OTP (44 chars) or TOTP
// code (6 digits) is split off the end of pw when the user has one, and the
// rest must match the user's bcrypt or sha256 hash. A user without any
// password hash cannot bind.
func checkPassword(user config.User, pw string, yubiAuth *yubigo.YubiAuth) error {
	for _, appPw := range user.PassAppBcrypt {
		if bcryptMatches(appPw, pw) {
			return nil
		}
	}
	for _, appPw := range user.PassAppSHA256 {
		if appPw == sha256Hex(pw) {
			return nil
		}
	}

	validotp := len(user.Yubikey) == 0 && len(user.OTPSecret) == 0

	if len(user.Yubikey) > 0 && yubiAuth != nil && len(pw) > yubikeyOTPLength {
		otp := pw[len(pw)-yubikeyOTPLength:]
		if otp[:yubikeyIDLength] == user.Yubikey {
			if _, ok, _ := yubiAuth.Verify(otp); ok {
				validotp = true
				pw = pw[:len(pw)-yubikeyOTPLength]
			}
		}
	}

	if len(user.OTPSecret) > 0 && !validotp && len(pw) > totpLength {
		code := pw[len(pw)-totpLength:]
		pw = pw[:len(pw)-totpLength]
		validotp = totp.Validate(code, user.OTPSecret)
	}

	if !validotp {
		return fmt.Errorf("%w: invalid OTP for %s", ErrInvalidCredentials, user.Name)
	}

	switch {
	case user.PassBcrypt != "":
		if !bcryptMatches(user.PassBcrypt, pw) {
			return fmt.Errorf("%w: bcrypt mismatch for %s", ErrInvalidCredentials, user.Name)
		}
	case user.PassSHA256 != "":
		if user.PassSHA256 != sha256Hex(pw) {
			return fmt.Errorf("%w: sha256 mismatch for %s", ErrInvalidCredentials, user.Name)
		}
	default:
		return fmt.Errorf("%w: no password set for %s", ErrInvalidCredentials, user.Name)
	}

	return nil
}

package token

import (
	"net/http"
	"time"
)

// CookieSetter sets and clears session token cookies.
type CookieSetter interface {
	SetCookie(w http.ResponseWriter, tokenName, tokenValue string, expire time.Time) error
	ClearCookie(w http.ResponseWriter, tokenName string) error
}

// BaseCookieSetter provides a base implementation of CookieSetter
type BaseCookieSetter struct {
	Path     string
	HttpOnly bool
	Secure   bool
	SameSite http.SameSite
}

func NewCookieSetter(httpOnly, secure bool) *BaseCookieSetter {
	return &BaseCookieSetter{
		Path:     "/",
		HttpOnly: httpOnly,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (c *BaseCookieSetter) SetCookie(w http.ResponseWriter, tokenName, tokenValue string, expire time.Time) error {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenName,
		Path:     c.Path,
		Value:    tokenValue,
		Expires:  expire,
		HttpOnly: c.HttpOnly,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	})
	return nil
}

func (c *BaseCookieSetter) ClearCookie(w http.ResponseWriter, tokenName string) error {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenName,
		Path:     c.Path,
		Value:    "",
		MaxAge:   -1,
		HttpOnly: c.HttpOnly,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	})
	return nil
}

// SetSessionCookies writes both session cookies for a freshly minted pair.
func SetSessionCookies(c CookieSetter, w http.ResponseWriter, pair Pair) error {
	if err := c.SetCookie(w, AccessTokenName, pair.AccessToken.Token, pair.AccessToken.Expiry); err != nil {
		return err
	}
	return c.SetCookie(w, RefreshTokenName, pair.RefreshToken.Token, pair.RefreshToken.Expiry)
}

// ClearSessionCookies removes both session cookies.
func ClearSessionCookies(c CookieSetter, w http.ResponseWriter) error {
	if err := c.ClearCookie(w, AccessTokenName); err != nil {
		return err
	}
	return c.ClearCookie(w, RefreshTokenName)
}

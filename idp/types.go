package idp

import (
	"strconv"
	"time"

	"golang.org/x/oauth2"
)

// TokenSet is the provider token endpoint response.
type TokenSet struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"` // Seconds
}

func newTokenSet(token *oauth2.Token) TokenSet {
	ts := TokenSet{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		ExpiresIn:    int(token.ExpiresIn),
	}
	if idToken, ok := token.Extra("id_token").(string); ok {
		ts.IDToken = idToken
	}
	if ts.ExpiresIn == 0 {
		switch v := token.Extra("expires_in").(type) {
		case float64:
			ts.ExpiresIn = int(v)
		case string:
			ts.ExpiresIn, _ = strconv.Atoi(v)
		}
	}
	if ts.ExpiresIn == 0 && !token.Expiry.IsZero() {
		ts.ExpiresIn = int(time.Until(token.Expiry).Round(time.Second).Seconds())
	}
	return ts
}

// UserInfo holds the claims returned by the userinfo endpoint.
type UserInfo struct {
	Subject           string `json:"sub"`
	PreferredUsername string `json:"preferred_username"`
	Username          string `json:"username,omitempty"`
	Email             string `json:"email,omitempty"`
	Name              string `json:"name,omitempty"`
}

// DisplayName picks the best available identifier for the user.
func (u UserInfo) DisplayName() string {
	switch {
	case u.PreferredUsername != "":
		return u.PreferredUsername
	case u.Username != "":
		return u.Username
	default:
		return u.Subject
	}
}

type Status struct {
	Enabled      bool   `json:"enabled"`
	BaseURL      string `json:"baseUrl"`
	Realm        string `json:"realm"`
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	TokenURL     string `json:"tokenUrl,omitempty"`
	UserInfoURL  string `json:"userInfoUrl,omitempty"`
}

type FrontendConfig struct {
	Enabled  bool   `json:"enabled"`
	BaseURL  string `json:"baseUrl,omitempty"`
	Realm    string `json:"realm,omitempty"`
	ClientID string `json:"clientId,omitempty"`
}

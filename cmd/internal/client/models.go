package client

import "time"

type tokenAuthRequest struct {
	Token string `json:"token"`
}

type emailAuthRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type emailOTPRequest struct {
	Email string `json:"email"`
}

type emailOTPResponse struct {
	ReqID string `json:"req_id"`
}

type emailOTPConfirmRequest struct {
	ReqID string `json:"req_id"`
	Code  string `json:"code"`
}

type qrCreateResponse struct {
	LoginID   string    `json:"login_id"`
	CreatedAt time.Time `json:"created_at"`
}

type qrCheckRequest struct {
	LoginID  string `json:"login_id"`
	Remember bool   `json:"remember"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type logoutRequest struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
}

// sessionResponse is the gateway's session payload.
type sessionResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	Created      bool   `json:"created"`
	APIURL       string `json:"api_url"`
}

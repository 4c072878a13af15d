package core

// Wire contracts shared by the API and the edge proxy.

// TokenResponse is returned by POST /token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// UserView is the public JSON shape of a user.
type UserView struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"user_role"`
}

// UserCreate is the body of POST /create_user/.
type UserCreate struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"user_role" binding:"required"`
}

// ErrorBody mirrors the unified error payload {"error": {"code", "message"}}.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

package handlers

import "net/http"

// AuthHandler serves the sign-in endpoints players use to obtain the bearer
// token the room API expects.
type AuthHandler interface {
	HandleRegister() func(w http.ResponseWriter, r *http.Request)
	HandleLogin() func(w http.ResponseWriter, r *http.Request)
	HandleRefresh() func(w http.ResponseWriter, r *http.Request)
}

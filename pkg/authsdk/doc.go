/*
Package authsdk provides a client SDK for the otpgate authentication service.

# Overview

Login is two steps: credentials first, then a six digit one-time passcode
that the service emails to the account. Completing the second step yields a
short lived access token and sets a long lived refresh token as an http-only
cookie, which stays inside the client's cookie jar.

# Client vs Coordinator

  - Client: the unauthenticated endpoints (login, OTP, registration, password
    reset, refresh, logout, health, JWKS).

  - Coordinator: bearer-authenticated calls. It holds a Session and refreshes
    the access token transparently when the service answers 401.

    client := authsdk.NewClient("https://auth.example.com")
    coord := authsdk.NewCoordinator(client, authsdk.NewSession(""))

    challenge, err := client.Login(ctx, email, password)
    // ... user reads the code from their inbox ...
    login, err := coord.VerifyOTP(ctx, email, code, challenge.OTPID)

    me, err := coord.Protected(ctx)

# Silent Refresh

When a bearer call returns 401 the Coordinator refreshes once and retries
once:

 1. If another request already replaced the token, retry with the new one.
 2. If a refresh is in flight, queue behind it.
 3. Otherwise POST /refresh, store the new token and release every queued
    request in the order it queued, with the token or the error.

Each Session has at most one refresh in flight, so N requests failing
together cost a single refresh. A request that still gets 401 after its
retry is returned as final. Paths in Coordinator.Exempt (login, OTP,
registration, reset and refresh itself) never trigger a refresh.

A failed refresh clears the session and calls OnAuthFailure once.

# Error Handling

Non-2xx responses decode into *APIError. Switch on its Code rather than the
message:

	_, err := coord.VerifyOTP(ctx, email, code, otpID)
	switch {
	case authsdk.IsCode(err, authsdk.CodeInvalidOTP):
		// let the user re-enter the code
	case authsdk.NeedsNewOTP(err):
		// offer to resend
	}

# Logout

Coordinator.Logout clears the local session even when the request fails.
Refresh tokens are stateless, so a copied token stays valid until it expires.

# Thread Safety

Client, Session and Coordinator are safe for concurrent use. Independent
Sessions share nothing, so several can coexist in one process.
*/
package authsdk

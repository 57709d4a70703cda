package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/gigmarket/identity/internal/api/metrics"
	"github.com/gigmarket/identity/internal/core/domain"
	"github.com/gigmarket/identity/internal/core/ports"
)

type AuthHandler struct {
	authService ports.AuthService
}

func NewAuthHandler(authService ports.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// bindAndValidate decodes the JSON body into req and runs the validator.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	return c.Validate(req)
}

// Signup creates a password account.
//
// @Summary      Sign up with email and password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      signupRequest  true  "Account details"
// @Success      201   {object}  authResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      500   {object}  errorResponse
// @Router       /auth/signup [post]
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	return h.signup(c, toSignupInput(req))
}

// ClientSignup creates a password account with the client role.
//
// @Summary      Sign up as a client
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      clientSignupRequest  true  "Account details"
// @Success      201   {object}  authResponse
// @Failure      400   {object}  errorResponse
// @Failure      500   {object}  errorResponse
// @Router       /auth/client/signup [post]
func (h *AuthHandler) ClientSignup(c echo.Context) error {
	var req clientSignupRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	return h.signup(c, ports.PasswordSignupInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Role:     domain.RoleClient,
		Profile:  toProfilePatch(req.Profile),
	})
}

func (h *AuthHandler) signup(c echo.Context, in ports.PasswordSignupInput) error {
	res, err := h.authService.Signup(c.Request().Context(), in)
	if err != nil {
		return err
	}
	metrics.SignupsTotal.WithLabelValues(metrics.MethodPassword, string(res.Identity.Role)).Inc()
	metrics.SessionsIssuedTotal.WithLabelValues(metrics.MethodPassword).Inc()
	return c.JSON(http.StatusCreated, toAuthResponse(res))
}

// Login authenticates an email and password and returns a session token.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  authResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	res, err := h.authService.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		metrics.AuthAttemptsTotal.WithLabelValues(metrics.MethodPassword, attemptResult(err)).Inc()
		return err
	}

	method := metrics.MethodPassword
	if res.Session.Demo {
		method = metrics.MethodDemo
	}
	metrics.AuthAttemptsTotal.WithLabelValues(method, "success").Inc()
	metrics.SessionsIssuedTotal.WithLabelValues(method).Inc()
	return c.JSON(http.StatusOK, toAuthResponse(res))
}

// WalletChallenge issues the message a wallet must sign to authenticate.
//
// @Summary      Request a wallet sign-in challenge
// @Tags         wallet
// @Produce      json
// @Param        address  query     string  true  "Wallet address"
// @Success      200      {object}  challengeResponse
// @Failure      400      {object}  errorResponse
// @Router       /auth/wallet/challenge [get]
func (h *AuthHandler) WalletChallenge(c echo.Context) error {
	ch, err := h.authService.WalletChallenge(c.Request().Context(), c.QueryParam("address"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toChallengeResponse(ch))
}

// WalletLogin authenticates a wallet signature.
//
// @Summary      Login with a wallet signature
// @Tags         wallet
// @Accept       json
// @Produce      json
// @Param        body  body      walletProofRequest  true  "Signed challenge"
// @Success      200   {object}  authResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      404   {object}  walletNotRegisteredResponse
// @Router       /auth/wallet [post]
func (h *AuthHandler) WalletLogin(c echo.Context) error {
	var req walletProofRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	res, err := h.authService.WalletLogin(c.Request().Context(), toWalletProof(req))
	if err != nil {
		metrics.AuthAttemptsTotal.WithLabelValues(metrics.MethodWallet, attemptResult(err)).Inc()
		return err
	}
	metrics.AuthAttemptsTotal.WithLabelValues(metrics.MethodWallet, "success").Inc()
	metrics.SessionsIssuedTotal.WithLabelValues(metrics.MethodWallet).Inc()
	return c.JSON(http.StatusOK, toAuthResponse(res))
}

// WalletSignup creates an account bound to a wallet.
//
// @Summary      Sign up with a wallet
// @Tags         wallet
// @Accept       json
// @Produce      json
// @Param        body  body      walletSignupRequest  true  "Signed challenge and account details"
// @Success      201   {object}  authResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Router       /auth/wallet/signup [post]
func (h *AuthHandler) WalletSignup(c echo.Context) error {
	var req walletSignupRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	res, err := h.authService.WalletSignup(c.Request().Context(), toWalletSignupInput(req))
	if err != nil {
		return err
	}
	metrics.SignupsTotal.WithLabelValues(metrics.MethodWallet, string(res.Identity.Role)).Inc()
	metrics.SessionsIssuedTotal.WithLabelValues(metrics.MethodWallet).Inc()
	return c.JSON(http.StatusCreated, toAuthResponse(res))
}

// Me returns the authenticated identity.
//
// @Summary      Current user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  userEnvelope
// @Failure      401  {object}  errorResponse
// @Router       /auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	identity, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, userEnvelope{User: toUserResponse(identity)})
}

// UpdateProfile changes name, email, role or profile fields. A new
// walletAddress must come with walletData proving control of it.
//
// @Summary      Update profile
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      updateProfileRequest  true  "Fields to change"
// @Success      200   {object}  userEnvelope
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Router       /auth/users/profile [patch]
func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	identity, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	var req updateProfileRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	update, wallet := toProfileUpdate(req)
	updated, err := h.authService.UpdateProfile(c.Request().Context(), identity.ID, update, wallet)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, userEnvelope{User: toUserResponse(updated)})
}

// LinkWallet binds a wallet to the authenticated identity.
//
// @Summary      Link a wallet
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      walletProofRequest  true  "Signed challenge"
// @Success      200   {object}  userEnvelope
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Router       /auth/users/wallet [post]
func (h *AuthHandler) LinkWallet(c echo.Context) error {
	identity, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	var req walletProofRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	updated, err := h.authService.LinkWallet(c.Request().Context(), identity.ID, toWalletProof(req))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, userEnvelope{User: toUserResponse(updated)})
}

// UnlinkWallet removes the wallet of the authenticated identity.
//
// @Summary      Unlink the wallet
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  userEnvelope
// @Failure      400  {object}  errorResponse
// @Failure      401  {object}  errorResponse
// @Router       /auth/users/wallet [delete]
func (h *AuthHandler) UnlinkWallet(c echo.Context) error {
	identity, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	updated, err := h.authService.UnlinkWallet(c.Request().Context(), identity.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, userEnvelope{User: toUserResponse(updated)})
}

func attemptResult(err error) string {
	var notRegistered *domain.WalletNotRegisteredError
	switch {
	case errors.As(err, &notRegistered):
		return "not_registered"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, domain.ErrChallengeInvalid):
		return "challenge_invalid"
	default:
		return "error"
	}
}

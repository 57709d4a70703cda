package handler

import (
	"github.com/gigmarket/identity/internal/core/domain"
	"github.com/gigmarket/identity/internal/core/ports"
)

// --- Request → Service input ---

func toProfilePatch(p profileRequest) domain.ProfilePatch {
	return domain.ProfilePatch{
		Skills:          p.Skills,
		Bio:             p.Bio,
		HourlyRate:      p.HourlyRate,
		Location:        p.Location,
		CompanySize:     p.CompanySize,
		Industry:        p.Industry,
		CompanyLocation: p.CompanyLocation,
	}
}

func toWalletProof(w walletProofRequest) ports.WalletProof {
	return ports.WalletProof{Address: w.Address, Signature: w.Signature, Message: w.Message}
}

func toSignupInput(req signupRequest) ports.PasswordSignupInput {
	in := ports.PasswordSignupInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Role:     domain.Role(req.Role),
		Profile:  toProfilePatch(req.Profile),
	}
	if req.WalletData != nil {
		proof := toWalletProof(*req.WalletData)
		in.Wallet = &proof
	}
	return in
}

func toWalletSignupInput(req walletSignupRequest) ports.WalletSignupInput {
	return ports.WalletSignupInput{
		Proof:   ports.WalletProof{Address: req.Address, Signature: req.Signature, Message: req.Message},
		Name:    req.Name,
		Email:   req.Email,
		Role:    domain.Role(req.Role),
		Profile: toProfilePatch(req.Profile),
	}
}

// toProfileUpdate splits the PATCH body into the profile change and the
// optional wallet to bind.
func toProfileUpdate(req updateProfileRequest) (ports.ProfileUpdate, *ports.WalletProof) {
	update := ports.ProfileUpdate{
		Name:  req.Name,
		Email: req.Email,
		Patch: toProfilePatch(req.Profile),
	}
	if req.Role != nil {
		role := domain.Role(*req.Role)
		update.Role = &role
	}

	var wallet *ports.WalletProof
	if req.WalletAddress != nil && *req.WalletAddress != "" {
		wallet = &ports.WalletProof{Address: *req.WalletAddress}
		if req.WalletData != nil {
			wallet.Signature = req.WalletData.Signature
			wallet.Message = req.WalletData.Message
		}
	}
	return update, wallet
}

// --- Domain → Response ---

func toUserResponse(i *domain.Identity) userResponse {
	resp := userResponse{
		ID:            i.ID,
		Name:          i.Name,
		Email:         i.Email,
		WalletAddress: i.WalletAddress,
		Role:          string(i.Role),
		HasPassword:   i.HasPassword(),
		CreatedAt:     i.CreatedAt,
		UpdatedAt:     i.UpdatedAt,
	}
	switch p := i.Profile.(type) {
	case domain.FreelancerProfile:
		resp.Profile = profileResponse{Skills: p.Skills, Bio: p.Bio, HourlyRate: p.HourlyRate, Location: p.Location}
	case domain.ClientProfile:
		resp.Profile = profileResponse{CompanySize: p.CompanySize, Industry: p.Industry, CompanyLocation: p.CompanyLocation, Bio: p.Bio}
	}
	return resp
}

func toAuthResponse(res *domain.AuthResult) authResponse {
	return authResponse{
		Token:     res.Token,
		ExpiresAt: res.Session.ExpiresAt,
		User:      toUserResponse(res.Identity),
	}
}

func toChallengeResponse(ch *domain.WalletChallenge) challengeResponse {
	return challengeResponse{Address: ch.Address, Nonce: ch.Nonce, Message: ch.Message, ExpiresAt: ch.ExpiresAt}
}

func toDashboardResponse(d *domain.Dashboard) dashboardResponse {
	stats := d.Stats
	if stats == nil {
		stats = map[string]int64{}
	}
	return dashboardResponse{Role: string(d.Role), Stats: stats, GeneratedAt: d.GeneratedAt}
}

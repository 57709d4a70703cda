package domain

// Profile is the role-shaped part of an identity. It is a closed sum type:
// only FreelancerProfile and ClientProfile implement it.
type Profile interface {
	Role() Role
	isProfile()
}

// FreelancerProfile is carried by identities with RoleFreelancer.
type FreelancerProfile struct {
	Skills     []string
	Bio        string
	HourlyRate float64
	Location   string
}

func (FreelancerProfile) Role() Role { return RoleFreelancer }
func (FreelancerProfile) isProfile() {}

// ClientProfile is carried by identities with RoleClient.
type ClientProfile struct {
	CompanySize     string
	Industry        string
	CompanyLocation string
	Bio             string
}

func (ClientProfile) Role() Role { return RoleClient }
func (ClientProfile) isProfile() {}

// ProfilePatch carries optional profile fields. Nil fields are left untouched.
// Fields that do not belong to the target role are ignored.
type ProfilePatch struct {
	Skills          *[]string
	Bio             *string
	HourlyRate      *float64
	Location        *string
	CompanySize     *string
	Industry        *string
	CompanyLocation *string
}

// EmptyProfile returns the zero profile for role, or nil for an unknown role.
func EmptyProfile(role Role) Profile {
	switch role {
	case RoleFreelancer:
		return FreelancerProfile{}
	case RoleClient:
		return ClientProfile{}
	}
	return nil
}

// NewProfile builds a fresh profile of the given role from the patch.
func NewProfile(role Role, patch ProfilePatch) Profile {
	base := EmptyProfile(role)
	if base == nil {
		return nil
	}
	return ApplyPatch(base, patch)
}

// ApplyPatch merges the role-appropriate fields of patch into p and returns the result.
func ApplyPatch(p Profile, patch ProfilePatch) Profile {
	switch prof := p.(type) {
	case FreelancerProfile:
		if patch.Skills != nil {
			prof.Skills = append([]string(nil), (*patch.Skills)...)
		}
		if patch.Bio != nil {
			prof.Bio = *patch.Bio
		}
		if patch.HourlyRate != nil {
			prof.HourlyRate = *patch.HourlyRate
		}
		if patch.Location != nil {
			prof.Location = *patch.Location
		}
		return prof
	case ClientProfile:
		if patch.CompanySize != nil {
			prof.CompanySize = *patch.CompanySize
		}
		if patch.Industry != nil {
			prof.Industry = *patch.Industry
		}
		if patch.CompanyLocation != nil {
			prof.CompanyLocation = *patch.CompanyLocation
		}
		if patch.Bio != nil {
			prof.Bio = *patch.Bio
		}
		return prof
	}
	return p
}

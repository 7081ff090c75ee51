package dto

// CreateUserRequest registers an account. Authentication itself is handled elsewhere.
type CreateUserRequest struct {
	Email     string  `json:"email" validate:"required,email,max=255"`
	FullName  string  `json:"full_name" validate:"required,min=2,max=255"`
	Phone     *string `json:"phone,omitempty" validate:"omitempty,min=6,max=32"`
	Role      string  `json:"role" validate:"required,role"`
	CompanyID *uint   `json:"company_id,omitempty"`
}

// UserDTO is an account as seen by administrators
type UserDTO struct {
	ID        uint    `json:"id"`
	UUID      string  `json:"uuid"`
	Email     string  `json:"email"`
	Phone     *string `json:"phone,omitempty"`
	FullName  string  `json:"full_name"`
	Role      string  `json:"role"`
	RoleLabel string  `json:"role_label"`
	CompanyID *uint   `json:"company_id,omitempty"`
	IsActive  bool    `json:"is_active"`
	CreatedAt string  `json:"created_at"`
}

// CreateUserResponse returns the new account and how many guest requests it took over
type CreateUserResponse struct {
	User                     UserDTO `json:"user"`
	AttachedPickupRequests   int64   `json:"attached_pickup_requests"`
	AttachedPurchaseRequests int64   `json:"attached_purchase_requests"`
}

// ListUsersRequest filters accounts
type ListUsersRequest struct {
	Role     *string `json:"role,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
	Page     uint    `json:"page,omitempty"`
	PageSize uint    `json:"page_size,omitempty"`
}

// ListUsersResponse is one page of accounts
type ListUsersResponse struct {
	Items      []UserDTO      `json:"items"`
	Pagination PaginationInfo `json:"pagination"`
}

// ChangeRoleRequest assigns a new role to an account
type ChangeRoleRequest struct {
	Role string `json:"role" validate:"required,role"`
}

// ProspectDTO is a guest contact known from an anonymous submission
type ProspectDTO struct {
	UUID                string  `json:"uuid"`
	FullName            string  `json:"full_name"`
	Email               *string `json:"email,omitempty"`
	Phone               *string `json:"phone,omitempty"`
	InvitedAt           *string `json:"invited_at,omitempty"`
	InvitationExpiresAt *string `json:"invitation_expires_at,omitempty"`
	ConvertedUserID     *uint   `json:"converted_user_id,omitempty"`
	ConvertedAt         *string `json:"converted_at,omitempty"`
	CreatedAt           string  `json:"created_at"`
}

// ListProspectsRequest filters guest contacts
type ListProspectsRequest struct {
	Converted *bool `json:"converted,omitempty"`
	Page      uint  `json:"page,omitempty"`
	PageSize  uint  `json:"page_size,omitempty"`
}

// ListProspectsResponse is one page of guest contacts
type ListProspectsResponse struct {
	Items      []ProspectDTO  `json:"items"`
	Pagination PaginationInfo `json:"pagination"`
}

// InviteProspectResponse carries the one-time invitation token
type InviteProspectResponse struct {
	ProspectUUID    string `json:"prospect_uuid"`
	InvitationToken string `json:"invitation_token"`
	ExpiresAt       string `json:"expires_at"`
	Notified        bool   `json:"notified"`
}

// RegisterProspectRequest turns an invited prospect into a client account
type RegisterProspectRequest struct {
	Token    string  `json:"token" validate:"required,min=16"`
	FullName *string `json:"full_name,omitempty" validate:"omitempty,min=2,max=255"`
	Email    *string `json:"email,omitempty" validate:"omitempty,email,max=255"`
}

// RefreshTokenRequest exchanges a refresh token for a new token pair
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// TokenPairResponse is a freshly issued access and refresh token
type TokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	Role         string `json:"role"`
}

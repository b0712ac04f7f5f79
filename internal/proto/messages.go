package proto

import "google.golang.org/protobuf/types/known/structpb"

// User is the account message returned by Register and WhoAmI.
type User struct {
	ID       string
	Username string
	Email    string
	Role     string
}

func (u *User) Struct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		FieldID:       u.ID,
		FieldUsername: u.Username,
		FieldEmail:    u.Email,
		FieldRole:     u.Role,
	})
}

func UserFromStruct(m *structpb.Struct) *User {
	return &User{
		ID:       String(m, FieldID),
		Username: String(m, FieldUsername),
		Email:    String(m, FieldEmail),
		Role:     String(m, FieldRole),
	}
}

// TokenPair is the message returned by Login and Refresh. Lifetimes are in
// seconds.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	TokenType        string
	ExpiresIn        int64
	RefreshExpiresIn int64
}

func (p *TokenPair) Struct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		FieldAccessToken:      p.AccessToken,
		FieldRefreshToken:     p.RefreshToken,
		FieldTokenType:        p.TokenType,
		FieldExpiresIn:        p.ExpiresIn,
		FieldRefreshExpiresIn: p.RefreshExpiresIn,
	})
}

func TokenPairFromStruct(m *structpb.Struct) *TokenPair {
	return &TokenPair{
		AccessToken:      String(m, FieldAccessToken),
		RefreshToken:     String(m, FieldRefreshToken),
		TokenType:        String(m, FieldTokenType),
		ExpiresIn:        Int(m, FieldExpiresIn),
		RefreshExpiresIn: Int(m, FieldRefreshExpiresIn),
	}
}

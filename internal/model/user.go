package model

// User credential record
type User struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash"`
}

// PublicUser user fields safe to return to clients
type PublicUser struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Public strips credentials
func (u *User) Public() PublicUser {
	return PublicUser{Name: u.Name, Email: u.Email}
}

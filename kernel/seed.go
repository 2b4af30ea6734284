package kernel

import (
	"log"

	"github.com/matthewhartstonge/argon2"

	"github.com/maptrack/bank-api/models"
)

// Seed creates a development user so the API is usable before the
// identity service has provisioned anyone.
func (art *AppRuntime) Seed() {
	if art.DatabaseClient.Find(&models.User{}).RowsAffected == 0 {
		argon := argon2.DefaultConfig()
		password, _ := argon.HashEncoded([]byte("P@ssw0rd123"))
		user := &models.User{
			Email:        "dev@maptrack.local",
			PasswordHash: string(password),
			Phone:        "+70000000000",
			FirstName:    "Dev",
		}
		art.DatabaseClient.Create(user)
		log.Printf(" * Created new user: dev@maptrack.local:P@ssw0rd123")
	}
}

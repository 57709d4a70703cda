// @title                       Identity Service API
// @version                     1.0
// @description                 Password and wallet authentication, sessions and role-scoped dashboards.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"

	"github.com/gigmarket/identity/internal/cli"
)

func main() {
	cli.Execute(context.Background())
}

package navigation

import (
	"testing"

	"github.com/agrodata/agroadmin/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestDestination_ProfileRoutes(t *testing.T) {
	routes := Routes{
		ByRole:  map[types.Role]string{types.RoleAdmin: "/admin-list/{role}"},
		Default: "/my-profile/{id}/{role}",
	}

	assert.Equal(t, "/admin-list/0", routes.Destination(Actor{ID: "u-1", Role: types.RoleAdmin}))
	assert.Equal(t, "/my-profile/u-2/1", routes.Destination(Actor{ID: "u-2", Role: types.RoleTechnician}))
	assert.Equal(t, "/my-profile/u-3/7", routes.Destination(Actor{ID: "u-3", Role: 7}))
}

func TestDestination_FixedRoute(t *testing.T) {
	routes := Routes{Default: "/producer-list"}

	assert.Equal(t, "/producer-list", routes.Destination(Actor{ID: "u-1", Role: types.RoleAdmin}))
	assert.Equal(t, "/producer-list", routes.Destination(Actor{ID: "u-2", Role: types.RoleTechnician}))
}

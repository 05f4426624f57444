// Package seed provides demo data for a fresh registry.
package seed

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/agrodata/agroadmin/internal/store"
	"github.com/agrodata/agroadmin/internal/types"
)

const actor = "system"

// Result lists the ids that were created.
type Result struct {
	Products   map[string]string // name -> id
	Activities map[string]string // name -> id
	Admin      string
	Technician string
	Producer   string
}

var (
	products = []types.Product{
		{Name: "Milho", Description: "Grão de sequeiro"},
		{Name: "Feijão", Description: "Feijão-de-corda"},
		{Name: "Mandioca"},
		{Name: "Mel", Description: "Mel de abelha africanizada"},
		{Name: "Caju"},
	}
	activities = []types.Activity{
		{Name: "Agricultura"},
		{Name: "Apicultura"},
		{Name: "Pecuária"},
		{Name: "Piscicultura"},
	}
)

// Seed creates catalogs, an administrator, a technician and one producer.
// If products already exist it skips seeding and returns nil, nil.
func Seed(ctx context.Context, repo store.Repository, log *zap.Logger) (*Result, error) {
	existing, err := repo.List(ctx, types.CollectionProducts, store.Page{Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("checking products: %w", err)
	}
	if len(existing) > 0 {
		log.Info("registry already seeded, skipping")
		return nil, nil
	}

	res := &Result{
		Products:   make(map[string]string, len(products)),
		Activities: make(map[string]string, len(activities)),
	}

	for _, p := range products {
		id, err := create(ctx, repo, types.CollectionProducts, p)
		if err != nil {
			return nil, fmt.Errorf("creating product %s: %w", p.Name, err)
		}
		res.Products[p.Name] = id
	}
	for _, a := range activities {
		id, err := create(ctx, repo, types.CollectionActivities, a)
		if err != nil {
			return nil, fmt.Errorf("creating activity %s: %w", a.Name, err)
		}
		res.Activities[a.Name] = id
	}

	if res.Admin, err = create(ctx, repo, types.CollectionManagers, types.Profile{
		Name:      "Maria Administradora",
		BirthDate: "1985-03-12",
		CPF:       "111.222.333-44",
		Phone:     "(89) 99999-0001",
		Email:     "admin@agroadmin.example",
		Role:      types.RoleAdmin.String(),
	}); err != nil {
		return nil, fmt.Errorf("creating admin: %w", err)
	}
	if res.Technician, err = create(ctx, repo, types.CollectionManagers, types.Profile{
		Name:      "João Técnico",
		Nickname:  "Jota",
		BirthDate: "1990-08-25",
		CPF:       "555.666.777-88",
		Phone:     "(89) 99999-0002",
		Email:     "tecnico@agroadmin.example",
		Role:      types.RoleTechnician.String(),
	}); err != nil {
		return nil, fmt.Errorf("creating technician: %w", err)
	}

	if res.Producer, err = create(ctx, repo, types.CollectionProducers, types.Producer{
		Name:      "Antônia Produtora",
		Nickname:  "Toinha",
		BirthDate: "1970-01-30",
		CPF:       "999.888.777-66",
		Phone:     "(89) 98888-1234",
		Address: types.Address{
			ZipCode:  "64600-000",
			UF:       "PI",
			City:     "Picos",
			District: "Zona Rural",
			Street:   "Sítio Boa Vista",
		},
		FarmingActivity: types.FarmingActivity{
			ActivityName: types.Ref{Value: res.Activities["Apicultura"]},
			Period:       "Mensal",
			AverageCash:  "1200",
		},
		Products: []types.Ref{
			{Value: res.Products["Mel"]},
			{Value: res.Products["Caju"]},
		},
	}); err != nil {
		return nil, fmt.Errorf("creating producer: %w", err)
	}

	log.Info("registry seeded",
		zap.Int("products", len(res.Products)),
		zap.Int("activities", len(res.Activities)),
		zap.String("admin", res.Admin),
		zap.String("producer", res.Producer))
	return res, nil
}

func create(ctx context.Context, repo store.Repository, collection string, v any) (string, error) {
	doc, err := types.ToDocument(v)
	if err != nil {
		return "", err
	}
	created, err := repo.Create(ctx, collection, doc, actor)
	if err != nil {
		return "", err
	}
	return created.ID(), nil
}

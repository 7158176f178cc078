package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("ticket_projections")

		collection.Fields.Add(
			&core.TextField{Name: "address", Required: true},
			&core.TextField{Name: "slot_id", Required: true},
			&core.TextField{Name: "escrow_id", Required: true},
			&core.TextField{Name: "owner", Required: true},
			&core.NumberField{Name: "issued_at", OnlyInt: true},
			&core.BoolField{Name: "checked_in"},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)
		collection.AddIndex("idx_ticket_projections_address", true, "address", "")
		collection.AddIndex("idx_ticket_projections_owner", false, "owner", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("ticket_projections")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}

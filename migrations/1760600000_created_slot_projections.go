package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("slot_projections")

		collection.Fields.Add(
			&core.TextField{Name: "slot_id", Required: true},
			&core.TextField{Name: "creator", Required: true},
			&core.SelectField{Name: "mode", Required: true, MaxSelect: 1, Values: []string{"stable", "english_auction", "sealed_bid"}},
			&core.SelectField{Name: "state", Required: true, MaxSelect: 1, Values: []string{"open", "locked", "closed"}},
			&core.TextField{Name: "currency"},
			&core.TextField{Name: "price"},
			&core.TextField{Name: "buy_now_price"},
			&core.NumberField{Name: "capacity_total", OnlyInt: true},
			&core.NumberField{Name: "capacity_sold", OnlyInt: true},
			&core.BoolField{Name: "frozen"},
			&core.NumberField{Name: "start_ts", OnlyInt: true},
			&core.NumberField{Name: "end_ts", OnlyInt: true},
			&core.NumberField{Name: "auction_end_ts", OnlyInt: true},
			&core.TextField{Name: "winner"},
			&core.TextField{Name: "winning_bid"},
			&core.BoolField{Name: "settled"},
			&core.TextField{Name: "last_event"},
			&core.NumberField{Name: "last_event_at", OnlyInt: true},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)
		collection.AddIndex("idx_slot_projections_slot_id", true, "slot_id", "")
		collection.AddIndex("idx_slot_projections_creator", false, "creator", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("slot_projections")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}

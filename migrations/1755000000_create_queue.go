package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("queue")

		collection.Fields.Add(
			&core.TextField{Name: "userId", Required: true},
			&core.SelectField{Name: "role", Required: true, MaxSelect: 1, Values: []string{"venter", "listener"}},
			&core.SelectField{Name: "status", Required: true, MaxSelect: 1, Values: []string{"waiting", "matched"}},
			&core.NumberField{Name: "addedAt", Required: true},
			&core.TextField{Name: "sessionId"},
			&core.DateField{Name: "matchedAt"},
			&core.TextField{Name: "ventText", Max: 500},
			&core.TextField{Name: "plan"},
			&core.TextField{Name: "previewText", Max: 103},
			&core.TextField{Name: "roomId"},
			&core.SelectField{Name: "roomStatus", MaxSelect: 1, Values: []string{"open", "joined"}},
			&core.NumberField{Name: "listenerCount"},
			&core.NumberField{Name: "maxListeners"},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		// Matching scans by role+status ordered on addedAt; room browse
		// filters on roomStatus; joins look entries up by roomId.
		collection.AddIndex("idx_queue_role_status_added", false, "role, status, addedAt", "")
		collection.AddIndex("idx_queue_room_status_added", false, "roomStatus, status, addedAt", "")
		collection.AddIndex("idx_queue_room_id", false, "roomId", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("queue")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}

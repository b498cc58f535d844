package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("sessions")

		collection.Fields.Add(
			&core.TextField{Name: "venterId", Required: true},
			&core.TextField{Name: "listenerId", Required: true},
			&core.TextField{Name: "ventText", Max: 500},
			&core.TextField{Name: "plan", Required: true},
			&core.TextField{Name: "channelName", Required: true},
			&core.TextField{Name: "roomId"},
			&core.SelectField{Name: "status", Required: true, MaxSelect: 1, Values: []string{"active", "ended"}},
			&core.DateField{Name: "startTime"},
			&core.DateField{Name: "endTime"},
			&core.NumberField{Name: "durationSeconds"},
			&core.SelectField{Name: "endType", MaxSelect: 1, Values: []string{"manual-ended", "auto-ended", "error-ended"}},
			&core.TextField{Name: "venterQueueDocId"},
			&core.TextField{Name: "listenerQueueDocId"},
			&core.DateField{Name: "endedAt"},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		// Stats count active sessions.
		collection.AddIndex("idx_sessions_status", false, "status", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("sessions")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}

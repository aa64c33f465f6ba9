package mockapi

import "github.com/alexbotov/itchdesk/pkg/itchio"

// Demo account credentials created by Seed
const (
	DemoUsername = "demo"
	DemoPassword = "demo-password"
	DemoKey      = "demo-key"
)

// Seeded lists what Seed created
type Seeded struct {
	Key        string
	User       itchio.User
	Developed  itchio.Game
	Free       itchio.Game
	Paid       itchio.Game
	OwnedKey   itchio.OwnedKey
	Collection itchio.Collection
}

// Seed fills b with a small library: a developer account with one game of
// its own, a free game, a paid game it bought and one collection.
func Seed(b *Backend) *Seeded {
	s := &Seeded{}

	s.Key = b.AddUser(itchio.User{
		Username:    DemoUsername,
		DisplayName: "Demo Developer",
		URL:         "https://demo.itch.io",
		Developer:   true,
		Gamer:       true,
	}, DemoPassword, DemoKey)
	acc, _ := b.account(s.Key)
	s.User = acc.user

	s.Developed = b.AddGame(s.Key, itchio.Game{
		Title:          "Lantern Keeper",
		ShortText:      "Keep the light on.",
		URL:            "https://demo.itch.io/lantern-keeper",
		Classification: "game",
		PWindows:       true,
		PLinux:         true,
	})
	b.AddUpload(s.Developed.ID, itchio.Upload{Filename: "lantern-keeper-linux.zip", Size: 48_213_004, PLinux: true})
	b.AddUpload(s.Developed.ID, itchio.Upload{Filename: "lantern-keeper-win.zip", Size: 51_002_118, PWindows: true})

	s.Free = b.AddGame("", itchio.Game{
		Title:          "Moss Garden",
		URL:            "https://someone.itch.io/moss-garden",
		Classification: "game",
		POSX:           true,
	})
	b.AddUpload(s.Free.ID, itchio.Upload{Filename: "moss-garden.dmg", Size: 120_554_310, POSX: true})

	s.Paid = b.AddGame("", itchio.Game{
		Title:          "Tidewright",
		URL:            "https://studio.itch.io/tidewright",
		Classification: "game",
		MinPrice:       999,
		CanBeBought:    true,
		PWindows:       true,
		PLinux:         true,
	})
	b.AddUpload(s.Paid.ID, itchio.Upload{Filename: "tidewright-1.2.zip", Size: 301_441_220, PWindows: true, PLinux: true})

	s.OwnedKey = b.Purchase(s.Key, s.Paid.ID)
	s.Collection = b.AddCollection(s.Key, "To play", s.Free.ID, s.Paid.ID)

	return s
}

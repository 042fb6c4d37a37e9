package signaling

import (
	"crypto/rand"
	"fmt"
	"log"
	"math/big"
)

var colors = []string{
	"amber", "azure", "coral", "crimson", "emerald", "golden", "indigo", "ivory", "jade", "lilac",
	"maroon", "olive", "pearl", "plum", "ruby", "russet", "sable", "scarlet", "teal", "violet",
}

var creatures = []string{
	"badger", "bison", "condor", "cricket", "falcon", "gecko", "heron", "ibis", "jackal", "kestrel",
	"lemur", "lynx", "marmot", "osprey", "puffin", "quail", "raven", "stoat", "tapir", "wren",
}

var places = []string{
	"archway", "bay", "bluff", "canyon", "cove", "delta", "fjord", "glade", "grove", "harbor",
	"hollow", "isle", "knoll", "lagoon", "mesa", "ridge", "shore", "summit", "tundra", "valley",
}

// GenerateCode creates a memorable room code of the form
// color-creature-place (e.g. "amber-falcon-cove"). Codes are drawn with a
// cryptographically secure source so they are not guessable from the clock.
func GenerateCode() string {
	return fmt.Sprintf("%s-%s-%s",
		colors[randomIndex(len(colors))],
		creatures[randomIndex(len(creatures))],
		places[randomIndex(len(places))],
	)
}

// randomIndex returns a cryptographically secure random index for a slice of
// the given length.
func randomIndex(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		log.Panic("failed to generate random index:", err)
	}
	return int(n.Int64())
}

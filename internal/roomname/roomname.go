// Package roomname makes up memorable room names for `huddle join` when
// the user does not pick one.
package roomname

import (
	"crypto/rand"
	"math/big"
	"strings"
)

var moods = []string{
	"amber", "brisk", "calm", "dapper", "eager", "fuzzy", "gentle", "hazy", "jolly", "keen",
	"lively", "mellow", "nimble", "plucky", "quiet", "rosy", "sunny", "tidy", "velvet", "witty",
	"breezy", "cosy", "dusky", "frosty", "golden", "humble", "merry", "snowy", "spry", "zesty",
}

var creatures = []string{
	"otter", "heron", "badger", "lynx", "marmot", "puffin", "walrus", "gecko", "ibis", "koi",
	"lemur", "magpie", "newt", "ocelot", "panda", "quokka", "raven", "stoat", "tapir", "wombat",
	"alpaca", "bison", "crane", "dingo", "egret", "finch", "gibbon", "hare", "jackal", "kestrel",
}

var places = []string{
	"harbor", "meadow", "canyon", "lagoon", "summit", "grove", "island", "valley", "delta", "ridge",
	"orchard", "prairie", "tundra", "bayou", "cove", "fjord", "glade", "mesa", "oasis", "reef",
	"atrium", "attic", "cabin", "cellar", "garden", "library", "lounge", "porch", "studio", "terrace",
}

// Generate returns a name like "jolly-otter-harbor".
func Generate() string {
	parts := []string{pick(moods), pick(creatures), pick(places)}
	return strings.Join(parts, "-")
}

// pick returns a uniformly random element of words.
func pick(words []string) string {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(words))))
	if err != nil {
		panic("roomname: crypto/rand failed: " + err.Error())
	}
	return words[n.Int64()]
}

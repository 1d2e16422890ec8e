package audit

// aiPhrases are stock phrases overused by generative models. Each one
// counts at most once per text.
var aiPhrases = []string{
	"in conclusion",
	"delve into",
	"paradigm shift",
	"it is important to note",
	"it's important to note",
	"in today's fast-paced world",
	"in the realm of",
	"a testament to",
	"navigate the complexities",
	"unlock the potential",
	"plays a crucial role",
	"a pivotal role",
	"tapestry",
	"ever-evolving",
	"game-changer",
	"seamlessly",
	"furthermore",
	"moreover",
	"in summary",
	"harness the power",
	"at the end of the day",
	"embark on a journey",
	"shed light on",
	"foster a sense of",
	"leverage",
}

// placeholderMarkers identify filler text copied from lorem ipsum generators.
var placeholderMarkers = []string{
	"lorem ipsum",
	"dolor sit amet",
	"consectetur adipiscing",
}

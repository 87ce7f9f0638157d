package pool

// stopwords removed before similarity scoring. Small on purpose: the corpus
// ideas are short, and aggressive removal hurts more than it helps.
var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "to": true, "of": true, "in": true,
	"on": true, "for": true, "with": true, "and": true, "or": true, "is": true,
	"are": true, "be": true, "it": true, "this": true, "that": true, "my": true,
	"me": true, "i": true, "so": true, "as": true, "at": true, "by": true,
	"from": true, "do": true, "does": true, "can": true, "should": true,
	"would": true, "want": true, "need": true, "please": true,
}

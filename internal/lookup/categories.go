package lookup

import (
	"regexp"
	"strings"
)

// KeywordGroup is a named list of keywords.
type KeywordGroup struct {
	Name     string
	Keywords []string
}

// ProductCategories drive text based category detection. Order matters for
// ties: the earlier group wins.
var ProductCategories = []KeywordGroup{
	{"television", []string{"tv", "television", "smart tv", "hdtv", "4k", "8k", "oled", "qled", "lcd"}},
	{"smartphone", []string{"phone", "smartphone", "iphone", "galaxy", "android", "mobile"}},
	{"laptop", []string{"laptop", "notebook", "macbook", "chromebook", "ultrabook"}},
	{"tablet", []string{"tablet", "ipad", "galaxy tab", "surface"}},
	{"camera", []string{"camera", "dslr", "mirrorless", "digital camera", "gopro"}},
	{"speaker", []string{"speaker", "bluetooth speaker", "sound bar", "soundbar", "surround sound"}},
	{"headphones", []string{"headphones", "earbuds", "earphones", "headset", "airpods"}},
	{"watch", []string{"watch", "smartwatch", "fitness tracker", "apple watch", "garmin"}},
	{"gaming", []string{"xbox", "playstation", "nintendo", "ps5", "ps4", "switch", "gaming console"}},
	{"appliance", []string{"refrigerator", "fridge", "washer", "dryer", "dishwasher", "microwave", "oven", "stove"}},
	{"vacuum", []string{"vacuum", "robot vacuum", "stick vacuum", "dyson"}},
	{"tool", []string{"drill", "saw", "screwdriver", "tool set", "power tool", "cordless tool"}},
	{"furniture", []string{"chair", "table", "sofa", "bed", "dresser", "desk", "bookshelf"}},
	{"jewelry", []string{"ring", "necklace", "bracelet", "earrings", "gold", "silver", "diamond"}},
	{"clothing", []string{"shirt", "pants", "jacket", "dress", "shoes", "boots", "sneakers"}},
	{"toy", []string{"toy", "lego", "puzzle", "action figure", "doll", "barbie", "nerf"}},
}

// DetectionCategories map detected object labels to broad categories.
var DetectionCategories = []KeywordGroup{
	{"electronics", []string{"tv", "television", "smartphone", "phone", "computer", "laptop", "monitor", "speaker", "headphone", "camera", "tablet"}},
	{"furniture", []string{"chair", "table", "desk", "sofa", "couch", "bed", "dresser", "cabinet"}},
	{"appliances", []string{"refrigerator", "fridge", "washing machine", "washer", "dryer", "dishwasher", "microwave", "oven", "stove", "vacuum"}},
	{"tools", []string{"drill", "saw", "hammer", "screwdriver", "wrench", "tool"}},
	{"jewelry", []string{"ring", "necklace", "bracelet", "watch", "gold", "silver", "diamond"}},
	{"art", []string{"painting", "sculpture", "art", "artwork", "statue", "canvas"}},
	{"clothing", []string{"shirt", "pants", "jacket", "coat", "dress", "shoe", "boots"}},
	{"sports", []string{"bicycle", "bike", "treadmill", "weights", "golf", "ski", "snowboard"}},
}

// GenericObjects are shape tags from local analysis that carry no product
// meaning on their own.
var GenericObjects = map[string]bool{
	"tall_item":          true,
	"wide_item":          true,
	"square_item":        true,
	"rectangular_object": true,
}

var productCategoryPatterns = func() [][]*regexp.Regexp {
	out := make([][]*regexp.Regexp, len(ProductCategories))
	for i, g := range ProductCategories {
		for _, kw := range g.Keywords {
			out[i] = append(out[i], regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(kw)+`\b`))
		}
	}
	return out
}()

// CategorizeText returns the product category with the most whole-word
// keyword hits in text, or "" when nothing matches.
func CategorizeText(text string) string {
	best, bestHits := "", 0
	for i, patterns := range productCategoryPatterns {
		hits := 0
		for _, re := range patterns {
			if re.MatchString(text) {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = ProductCategories[i].Name, hits
		}
	}
	return best
}

// CategorizeObjects returns the detection category matched by the most
// objects. Each object counts at most once per category.
func CategorizeObjects(objects []string) string {
	best, bestHits := "", 0
	for _, g := range DetectionCategories {
		hits := 0
		for _, obj := range objects {
			obj = strings.ToLower(obj)
			for _, kw := range g.Keywords {
				if strings.Contains(obj, kw) {
					hits++
					break
				}
			}
		}
		if hits > bestHits {
			best, bestHits = g.Name, hits
		}
	}
	return best
}

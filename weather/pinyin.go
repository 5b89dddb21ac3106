package weather

import (
	"strings"

	"github.com/mozillazg/go-pinyin"
)

// ContainsChinese reports whether s has a CJK unified ideograph in the
// U+4E00..U+9FA5 block.
func ContainsChinese(s string) bool {
	for _, r := range s {
		if r >= 0x4E00 && r <= 0x9FA5 {
			return true
		}
	}
	return false
}

var pinyinArgs = func() pinyin.Args {
	a := pinyin.NewArgs()
	a.Style = pinyin.Normal
	// keep latin letters, digits and spaces as they are
	a.Fallback = func(r rune, _ pinyin.Args) []string {
		return []string{string(r)}
	}
	return a
}()

// ToPinyin joins the toneless reading of every character, e.g. 无锡 -> wuxi.
func ToPinyin(s string) string {
	return strings.Join(pinyin.LazyPinyin(s, pinyinArgs), "")
}

// QueryName is the location string sent upstream for a user supplied city.
func QueryName(city string) string {
	city = strings.TrimSpace(city)
	if ContainsChinese(city) {
		return ToPinyin(city)
	}
	return city
}

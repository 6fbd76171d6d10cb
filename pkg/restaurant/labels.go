package restaurant

import (
	"strings"
)

// Language selects the output language of label translation.
type Language string

// Supported output languages.
const (
	Japanese Language = "ja"
	English  Language = "en"
	Chinese  Language = "zh"
)

// Entry maps one Japanese label to its translations and ikyu search code.
type Entry struct {
	Japanese string `yaml:"japanese" json:"japanese"`
	English  string `yaml:"english" json:"english"`
	Chinese  string `yaml:"chinese" json:"chinese"`
	Code     string `yaml:"code" json:"code"`
}

// Table is a lookup of Japanese labels. The zero value is empty and usable.
type Table struct {
	index   map[string]int
	entries []Entry
}

// NewTable builds a table; later entries replace earlier ones with the same Japanese label.
func NewTable(entries ...[]Entry) *Table {
	t := &Table{index: make(map[string]int)}
	for _, list := range entries {
		for _, e := range list {
			e.Japanese = strings.TrimSpace(e.Japanese)
			if e.Japanese == "" {
				continue
			}
			if i, ok := t.index[e.Japanese]; ok {
				t.entries[i] = merge(t.entries[i], e)
				continue
			}
			t.index[e.Japanese] = len(t.entries)
			t.entries = append(t.entries, e)
		}
	}
	return t
}

func merge(old, e Entry) Entry {
	if e.English != "" {
		old.English = e.English
	}
	if e.Chinese != "" {
		old.Chinese = e.Chinese
	}
	if e.Code != "" {
		old.Code = e.Code
	}
	return old
}

// With returns a new table with extra entries layered over t.
func (t *Table) With(extra []Entry) *Table {
	return NewTable(t.entries, extra)
}

func (t *Table) lookup(label string) (Entry, bool) {
	if t == nil || t.index == nil {
		return Entry{}, false
	}
	i, ok := t.index[strings.TrimSpace(label)]
	if !ok {
		return Entry{}, false
	}
	return t.entries[i], true
}

func (e Entry) in(lang Language) string {
	switch lang {
	case English:
		return e.English
	case Chinese:
		return e.Chinese
	default:
		return e.Japanese
	}
}

// Translate converts a label into lang. Compound labels joined with "・" are
// translated part by part when the whole label is unknown. Unknown parts are
// returned unchanged.
func (t *Table) Translate(label string, lang Language) string {
	label = strings.TrimSpace(label)
	if lang == Japanese || label == "" {
		return label
	}
	if e, ok := t.lookup(label); ok {
		if s := e.in(lang); s != "" {
			return s
		}
		return label
	}
	parts := strings.Split(label, "・")
	for i, p := range parts {
		if e, ok := t.lookup(p); ok && e.in(lang) != "" {
			parts[i] = e.in(lang)
		}
	}
	return strings.Join(parts, "・")
}

// Code returns the ikyu search code for a label.
func (t *Table) Code(label string) (string, bool) {
	e, ok := t.lookup(label)
	if !ok || e.Code == "" {
		return "", false
	}
	return e.Code, true
}

// Labels returns the Japanese labels in table order.
func (t *Table) Labels() []string {
	if t == nil {
		return nil
	}
	out := make([]string, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e.Japanese)
	}
	return out
}

// Cuisines holds the built-in cuisine translations. Search codes are supplied by configuration.
var Cuisines = NewTable([]Entry{
	{Japanese: "和食", English: "Japanese", Chinese: "日料"},
	{Japanese: "懐石・会席料理", English: "Kaiseki", Chinese: "怀石料理"},
	{Japanese: "割烹・小料理", English: "Kappo", Chinese: "割烹"},
	{Japanese: "京料理", English: "Kyoto cuisine", Chinese: "京料理"},
	{Japanese: "魚介・海鮮料理", English: "Seafood", Chinese: "海鲜"},
	{Japanese: "寿司", English: "Sushi", Chinese: "寿司"},
	{Japanese: "天ぷら", English: "Tempura", Chinese: "天妇罗"},
	{Japanese: "鉄板焼", English: "Teppanyaki", Chinese: "铁板烧"},
	{Japanese: "すき焼き／しゃぶしゃぶ", English: "Sukiyaki / Shabu-shabu", Chinese: "寿喜烧／涮涮锅"},
	{Japanese: "焼鳥", English: "Yakitori", Chinese: "烤鸡串"},
	{Japanese: "鍋", English: "Hot pot", Chinese: "火锅"},
	{Japanese: "うなぎ料理", English: "Eel", Chinese: "鳗鱼"},
	{Japanese: "和食その他", English: "Other Japanese", Chinese: "其他日料"},
	{Japanese: "焼肉", English: "Yakiniku", Chinese: "烤肉"},
	{Japanese: "ステーキ／グリル料理", English: "Steak / Grill", Chinese: "牛排／烧烤"},
	{Japanese: "フレンチ", English: "French", Chinese: "法餐"},
	{Japanese: "イタリアン", English: "Italian", Chinese: "意大利菜"},
	{Japanese: "スペイン料理", English: "Spanish", Chinese: "西班牙菜"},
	{Japanese: "洋食", English: "Western", Chinese: "西餐"},
	{Japanese: "中華", English: "Chinese", Chinese: "中餐"},
	{Japanese: "中国料理", English: "Chinese cuisine", Chinese: "中国菜"},
	{Japanese: "飲茶・点心", English: "Dim sum", Chinese: "饮茶・点心"},
	{Japanese: "韓国料理", English: "Korean", Chinese: "韩国料理"},
	{Japanese: "ブッフェ", English: "Buffet", Chinese: "自助餐"},
	{Japanese: "ラウンジ", English: "Lounge", Chinese: "酒廊"},
	{Japanese: "バー", English: "Bar", Chinese: "酒吧"},
	{Japanese: "ワインバー", English: "Wine bar", Chinese: "葡萄酒吧"},
	{Japanese: "ビアガーデン・BBQ", English: "Beer garden / BBQ", Chinese: "啤酒花园・烧烤"},
})

// Regions holds the built-in Tokyo sub-region names. Search codes are supplied by configuration.
var Regions = NewTable([]Entry{
	{Japanese: "銀座", English: "Ginza", Chinese: "银座"},
	{Japanese: "東銀座", English: "Higashi-Ginza", Chinese: "东银座"},
	{Japanese: "有楽町", English: "Yurakucho", Chinese: "有乐町"},
	{Japanese: "日比谷", English: "Hibiya", Chinese: "日比谷"},
	{Japanese: "新橋", English: "Shimbashi", Chinese: "新桥"},
	{Japanese: "丸の内", English: "Marunouchi", Chinese: "丸之内"},
	{Japanese: "東京駅", English: "Tokyo Station", Chinese: "东京站"},
	{Japanese: "日本橋", English: "Nihonbashi", Chinese: "日本桥"},
	{Japanese: "築地", English: "Tsukiji", Chinese: "筑地"},
	{Japanese: "浅草", English: "Asakusa", Chinese: "浅草"},
	{Japanese: "上野", English: "Ueno", Chinese: "上野"},
	{Japanese: "押上", English: "Oshiage", Chinese: "押上"},
	{Japanese: "両国", English: "Ryogoku", Chinese: "两国"},
	{Japanese: "蔵前", English: "Kuramae", Chinese: "藏前"},
	{Japanese: "渋谷", English: "Shibuya", Chinese: "涩谷"},
	{Japanese: "神泉", English: "Shinsen", Chinese: "神泉"},
	{Japanese: "代々木公園", English: "Yoyogi Park", Chinese: "代代木公园"},
	{Japanese: "表参道", English: "Omotesando", Chinese: "表参道"},
	{Japanese: "外苑前", English: "Gaiemmae", Chinese: "外苑前"},
	{Japanese: "青山", English: "Aoyama", Chinese: "青山"},
	{Japanese: "六本木", English: "Roppongi", Chinese: "六本木"},
	{Japanese: "麻布十番", English: "Azabu-Juban", Chinese: "麻布十番"},
	{Japanese: "西麻布", English: "Nishi-Azabu", Chinese: "西麻布"},
	{Japanese: "赤坂", English: "Akasaka", Chinese: "赤坂"},
	{Japanese: "恵比寿", English: "Ebisu", Chinese: "惠比寿"},
	{Japanese: "中目黒", English: "Naka-Meguro", Chinese: "中目黑"},
	{Japanese: "新宿", English: "Shinjuku", Chinese: "新宿"},
	{Japanese: "四谷", English: "Yotsuya", Chinese: "四谷"},
	{Japanese: "神楽坂", English: "Kagurazaka", Chinese: "神乐坂"},
	{Japanese: "池袋", English: "Ikebukuro", Chinese: "池袋"},
	{Japanese: "品川", English: "Shinagawa", Chinese: "品川"},
	{Japanese: "お台場", English: "Odaiba", Chinese: "台场"},
})

package weather

import "strings"

// Conditions is a snapshot of the weather in one city.
type Conditions struct {
	City      string `json:"city"`
	Condition string `json:"condition"`
	TempC     int    `json:"temp_c"`
	Humidity  int    `json:"humidity"`
	WindKPH   int    `json:"wind_kph"`
	UVIndex   int    `json:"uv_index"`
}

// DefaultCity answers requests that name no known city.
const DefaultCity = "Seoul"

type city struct {
	aliases []string
	now     Conditions
}

// Mock observations; the agent has no live data source.
var cities = []city{
	{[]string{"seoul", "서울"}, Conditions{"Seoul", "clear", 22, 60, 8, 5}},
	{[]string{"busan", "부산"}, Conditions{"Busan", "partly cloudy", 25, 65, 12, 6}},
	{[]string{"daegu", "대구"}, Conditions{"Daegu", "clear", 24, 55, 6, 5}},
	{[]string{"incheon", "인천"}, Conditions{"Incheon", "cloudy", 21, 70, 10, 3}},
	{[]string{"gwangju", "광주"}, Conditions{"Gwangju", "clear", 26, 58, 7, 6}},
	{[]string{"daejeon", "대전"}, Conditions{"Daejeon", "partly cloudy", 23, 62, 9, 4}},
	{[]string{"ulsan", "울산"}, Conditions{"Ulsan", "clear", 25, 63, 11, 5}},
	{[]string{"jeju", "제주"}, Conditions{"Jeju", "clear", 28, 72, 15, 7}},
}

// Cities lists the known city names.
func Cities() []string {
	out := make([]string, len(cities))
	for i, c := range cities {
		out[i] = c.now.City
	}
	return out
}

// Lookup returns the conditions for name, or the default city's.
func Lookup(name string) Conditions {
	for _, c := range cities {
		if strings.EqualFold(c.now.City, name) {
			return c.now
		}
	}
	return cities[0].now
}

// ExtractCity finds the first known city mentioned in text.
func ExtractCity(text string) string {
	if name, ok := findCity(text); ok {
		return name
	}
	return DefaultCity
}

func findCity(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, c := range cities {
		for _, alias := range c.aliases {
			if strings.Contains(lower, alias) {
				return c.now.City, true
			}
		}
	}
	return "", false
}

// Longer phrases first so "day after tomorrow" is not read as "tomorrow".
var timeKeywords = []struct {
	label    string
	keywords []string
}{
	{"the day after tomorrow", []string{"day after tomorrow", "모레"}},
	{"tomorrow", []string{"tomorrow", "내일"}},
	{"next week", []string{"next week", "다음주", "다음 주"}},
	{"this week", []string{"this week", "이번주", "이번 주"}},
	{"this weekend", []string{"weekend", "주말"}},
	{"today", []string{"today", "tonight", "now", "오늘", "지금", "현재"}},
}

// ExtractTime returns the time frame text asks about, defaulting to today.
func ExtractTime(text string) string {
	lower := strings.ToLower(text)
	for _, t := range timeKeywords {
		for _, k := range t.keywords {
			if strings.Contains(lower, k) {
				return t.label
			}
		}
	}
	return "today"
}

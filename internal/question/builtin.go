package question

import "github.com/rkatarai/hayaoshi/internal/game"

// Builtin returns a copy of the compiled-in fallback set. The seed tooling
// loads it into the curated table as starter content.
func Builtin() []game.Question {
	out := make([]game.Question, len(builtinQuestions))
	copy(out, builtinQuestions)
	return out
}

// builtinQuestions is the compiled-in fallback set. A match must always have
// playable content, so resolution degrades to this set whenever the curated
// table and the remote catalog yield nothing usable.
var builtinQuestions = []game.Question{
	{
		ID:           "builtin-1",
		Text:         "太陽系の惑星の中で、最も大きく、表面に有名な大赤斑を持つガス惑星は何でしょう？",
		Answer:       "木星",
		Subject:      "理科",
		Grade:        "3年",
		IsSelectable: true,
		Options:      []string{"土星", "火星", "木星", "天王星"},
	},
	{
		ID:           "builtin-2",
		Text:         "日本の憲法で定められている、国民の三大義務のうち、教育を受けさせる義務、勤労の義務とあと一つは何でしょう？",
		Answer:       "納税の義務",
		Subject:      "社会",
		Grade:        "3年",
		IsSelectable: true,
		Options:      []string{"納税の義務", "兵役の義務", "家族を扶養する義務", "環境を守る義務"},
	},
	{
		ID:           "builtin-3",
		Text:         "英文で、「私は医者です」という意味になるように、 I am a ( ) の ( ) に入る単語はどれでしょう？",
		Answer:       "doctor",
		Subject:      "英語",
		Grade:        "1年",
		IsSelectable: true,
		Options:      []string{"student", "teacher", "doctor", "firefighter"},
	},
	{
		ID:           "builtin-4",
		Text:         "二次方程式 x^2 - 5x + 6 = 0 の解は、次のうちどれでしょう？",
		Answer:       "x=2, 3",
		Subject:      "数学",
		Grade:        "3年",
		IsSelectable: true,
		Options:      []string{"x=-2, -3", "x=1, 6", "x=2, 3", "x=-1, 5"},
	},
	{
		ID:           "builtin-5",
		Text:         "「枕草子」の作者は誰でしょう？",
		Answer:       "清少納言",
		Subject:      "国語",
		Grade:        "2年",
		IsSelectable: true,
		Options:      []string{"紫式部", "清少納言", "兼好法師", "紀貫之"},
	},
	{
		ID:           "builtin-6",
		Text:         "水を電気分解したとき、陰極側に発生する気体は何でしょう？",
		Answer:       "水素",
		Subject:      "理科",
		Grade:        "2年",
		IsSelectable: false,
	},
	{
		ID:           "builtin-7",
		Text:         "1192年に鎌倉幕府を開いた人物は誰でしょう？",
		Answer:       "源頼朝",
		Subject:      "社会",
		Grade:        "1年",
		IsSelectable: false,
	},
	{
		ID:           "builtin-8",
		Text:         "円周率を小数第2位まで答えると？",
		Answer:       "3.14",
		Subject:      "数学",
		Grade:        "1年",
		IsSelectable: false,
	},
}

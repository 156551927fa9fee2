package risk

// 开户风控打分：纯函数、无状态的规则加权，外部协作方只关心 pass/fail。
// 分数越高风险越大，超过阈值即拒绝 (间接卡掉后续提现)。

const passThreshold = 60

type Submission struct {
	Country          string
	AgeYears         int
	DocumentComplete bool
	DisposableEmail  bool
	PriorRejections  int
}

type Verdict struct {
	Score int  `json:"score"`
	Pass  bool `json:"pass"`
}

// 高风险司法辖区（示例集合，生产从配置加载）
var highRiskCountries = map[string]struct{}{
	"XX": {},
	"YY": {},
}

// Score 规则加权打分
func Score(s Submission) Verdict {
	score := 0

	if _, ok := highRiskCountries[s.Country]; ok {
		score += 40
	}
	if s.AgeYears < 18 {
		score += 50
	}
	if !s.DocumentComplete {
		score += 30
	}
	if s.DisposableEmail {
		score += 15
	}
	// 历史被拒次数线性加权，封顶 30
	penalty := s.PriorRejections * 10
	if penalty > 30 {
		penalty = 30
	}
	score += penalty

	return Verdict{Score: score, Pass: score < passThreshold}
}

package services

import (
	"strconv"
	"strings"
)

// QuestDefinition is a static catalog quest.
type QuestDefinition struct {
	ID          int          `json:"id"`
	Title       string       `json:"title"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Type        string       `json:"type"`
	TotalTimes  int          `json:"totalTimes"`
	Rewards     QuestRewards `json:"rewards"`
}

// QuestRewards is what completing a quest grants.
type QuestRewards struct {
	Experience int `json:"experience"`
	Coins      int `json:"coins"`
}

// Key is the id progress rows are stored under.
func (q QuestDefinition) Key() string {
	return QuestKey(strconv.Itoa(q.ID))
}

// StageDefinition is a static catalog stage.
type StageDefinition struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Difficulty    string `json:"difficulty"`
	RequiredScore int    `json:"requiredScore"`
}

var questCatalog = []QuestDefinition{
	{ID: 1, Title: "COMPLETE_FIRST_STAGE", Name: "첫 번째 모험", Description: "첫 번째 스테이지를 완료하세요.", Type: "achievement", TotalTimes: 1, Rewards: QuestRewards{Experience: 100, Coins: 50}},
	{ID: 2, Title: "SCORE_COLLECTOR", Name: "점수 수집가", Description: "총 500점을 획득하세요.", Type: "achievement", TotalTimes: 500, Rewards: QuestRewards{Experience: 200, Coins: 100}},
	{ID: 3, Title: "DAILY_CHALLENGE", Name: "일일 도전", Description: "오늘 한 번 게임을 플레이하세요.", Type: "daily", TotalTimes: 1, Rewards: QuestRewards{Experience: 50, Coins: 25}},
	{ID: 4, Title: "STAGE_MASTER", Name: "스테이지 마스터", Description: "모든 스테이지를 완료하세요.", Type: "achievement", TotalTimes: 4, Rewards: QuestRewards{Experience: 300, Coins: 150}},
	{ID: 5, Title: "HIGH_SCORER", Name: "고득점자", Description: "총 1000점을 획득하세요.", Type: "achievement", TotalTimes: 1000, Rewards: QuestRewards{Experience: 400, Coins: 200}},
	{ID: 6, Title: "en_Score", Name: "영어 점수", Description: "영어 점수를 연동하세요.", Type: "achievement", TotalTimes: 1, Rewards: QuestRewards{Experience: 100, Coins: 50}},
	{ID: 7, Title: "SBT_quest", Name: "SBT 퀘스트", Description: "SBT를 발급받으세요.", Type: "achievement", TotalTimes: 1, Rewards: QuestRewards{Experience: 100, Coins: 50}},
}

var stageCatalog = []StageDefinition{
	{ID: 1, Name: "숲의 시작", Difficulty: "easy", RequiredScore: 0},
	{ID: 2, Name: "동굴 탐험", Difficulty: "easy", RequiredScore: 100},
	{ID: 3, Name: "산의 정상", Difficulty: "medium", RequiredScore: 300},
	{ID: 4, Name: "용의 둥지", Difficulty: "hard", RequiredScore: 500},
}

// QuestCatalog returns a copy of the quest catalog.
func QuestCatalog() []QuestDefinition {
	return append([]QuestDefinition(nil), questCatalog...)
}

// StageCatalog returns a copy of the stage catalog.
func StageCatalog() []StageDefinition {
	return append([]StageDefinition(nil), stageCatalog...)
}

// LookupQuest finds a quest by numeric id or stored key.
func LookupQuest(id string) (QuestDefinition, bool) {
	key := QuestKey(id)
	for _, q := range questCatalog {
		if q.Key() == key {
			return q, true
		}
	}
	return QuestDefinition{}, false
}

// LookupStage finds a stage by id.
func LookupStage(id int) (StageDefinition, bool) {
	for _, s := range stageCatalog {
		if s.ID == id {
			return s, true
		}
	}
	return StageDefinition{}, false
}

// QuestKey maps "3" to "quest-3"; ids already carrying the prefix pass through.
func QuestKey(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || strings.HasPrefix(id, "quest-") {
		return id
	}
	return "quest-" + id
}

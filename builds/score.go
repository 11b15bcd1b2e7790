package builds

import (
	"github.com/hashworks/buildfarm/model"
)

const PRIVATE_ARCHIVE_SCORE_BONUS = 10000

var pocketScores = map[model.Pocket]int{
	model.POCKET_BACKPORTS: 0,
	model.POCKET_PROPOSED:  500,
	model.POCKET_RELEASE:   1500,
	model.POCKET_UPDATES:   3000,
	model.POCKET_SECURITY:  4500,
}

var componentScores = map[string]int{
	"multiverse": 0,
	"universe":   250,
	"restricted": 750,
	"main":       1000,
	"partner":    1250,
}

var urgencyScores = map[string]int{
	"low":       5,
	"medium":    10,
	"high":      15,
	"emergency": 20,
}

// Score rates a new job. Unknown components and urgencies add nothing.
func Score(pub *model.SourcePublication, release *model.SourcePackageRelease, archive *model.Archive) int {
	score := pocketScores[pub.Pocket] + componentScores[pub.Component] + urgencyScores[release.Urgency]
	if archive.Private {
		score += PRIVATE_ARCHIVE_SCORE_BONUS
	}
	return score + archive.RelativeBuildScore
}

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSkillLifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.CreateSkill(ctx, Skill{Name: "web-search", Path: "skills/web-search"}))

	got, err := db.GetSkill(ctx, "web-search")
	require.NoError(t, err)
	assert.Equal(t, SkillPending, got.Status)

	require.NoError(t, db.ApproveSkill(ctx, "web-search"))
	got, err = db.GetSkill(ctx, "web-search")
	require.NoError(t, err)
	assert.Equal(t, SkillActive, got.Status)

	require.NoError(t, db.DisableSkill(ctx, "web-search"))
	got, err = db.GetSkill(ctx, "web-search")
	require.NoError(t, err)
	assert.Equal(t, SkillDisabled, got.Status)

	require.NoError(t, db.DeleteSkill(ctx, "web-search"))
	_, err = db.GetSkill(ctx, "web-search")
	assert.Error(t, err)
}

func TestCreateSkillRejectsDuplicateName(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.CreateSkill(ctx, Skill{Name: "dup"}))
	err := db.CreateSkill(ctx, Skill{Name: "dup"})
	assert.Error(t, err)
}

func TestListSkillsOrderedByName(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.CreateSkill(ctx, Skill{Name: "zeta"}))
	require.NoError(t, db.CreateSkill(ctx, Skill{Name: "alpha"}))

	skills, err := db.ListSkills(ctx)
	require.NoError(t, err)
	require.Len(t, skills, 2)
	assert.Equal(t, "alpha", skills[0].Name)
	assert.Equal(t, "zeta", skills[1].Name)
}

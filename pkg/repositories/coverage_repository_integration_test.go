//go:build integration

package repositories

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfield-hq/openfield-engine/pkg/apperrors"
	"github.com/openfield-hq/openfield-engine/pkg/models"
)

func TestCoverageRepository_SchemesAndNodes(t *testing.T) {
	tc := setupRepoTest(t)
	repo := NewCoverageRepository(tc.pool)

	scheme := &models.CoverageScheme{Name: "Kenya Admin Units", Description: "County/Subcounty/Ward"}
	require.NoError(t, repo.CreateScheme(tc.ctx, scheme))
	assert.NotZero(t, scheme.ID)

	county := &models.CoverageNode{SchemeID: scheme.ID, Name: "Mombasa", LevelIndex: 0}
	require.NoError(t, repo.CreateNode(tc.ctx, county))

	ward := &models.CoverageNode{SchemeID: scheme.ID, ParentID: &county.ID, Name: "Nyali", LevelIndex: 1}
	require.NoError(t, repo.CreateNode(tc.ctx, ward))

	t.Run("DuplicateSiblingNameConflicts", func(t *testing.T) {
		err := repo.CreateNode(tc.ctx, &models.CoverageNode{
			SchemeID: scheme.ID, ParentID: &county.ID, Name: "Nyali", LevelIndex: 1,
		})
		assert.ErrorIs(t, err, apperrors.ErrConflict)
	})

	t.Run("SameNameUnderDifferentParentIsFine", func(t *testing.T) {
		other := &models.CoverageNode{SchemeID: scheme.ID, Name: "Kilifi", LevelIndex: 0}
		require.NoError(t, repo.CreateNode(tc.ctx, other))
		require.NoError(t, repo.CreateNode(tc.ctx, &models.CoverageNode{
			SchemeID: scheme.ID, ParentID: &other.ID, Name: "Nyali", LevelIndex: 1,
		}))
	})

	t.Run("ListNodesIsBreadthFirst", func(t *testing.T) {
		nodes, err := repo.ListNodes(tc.ctx, scheme.ID)
		require.NoError(t, err)
		require.Len(t, nodes, 4)
		assert.Equal(t, 0, nodes[0].LevelIndex)
		assert.Equal(t, 0, nodes[1].LevelIndex)
		assert.Equal(t, 1, nodes[2].LevelIndex)
		assert.Equal(t, 1, nodes[3].LevelIndex)
	})
}

func TestCoverageRepository_ReindexSubtree(t *testing.T) {
	tc := setupRepoTest(t)
	repo := NewCoverageRepository(tc.pool)

	schemeID := tc.seedScheme("Admin Units")
	county := tc.seedNode(schemeID, nil, "Mombasa", 0)
	subcounty := tc.seedNode(schemeID, &county, "Nyali", 1)
	ward := tc.seedNode(schemeID, &subcounty, "Frere Town", 2)

	// Promote the subcounty to a root and renumber its descendants.
	node, err := repo.GetNode(tc.ctx, subcounty)
	require.NoError(t, err)
	node.ParentID = nil
	node.LevelIndex = 0
	require.NoError(t, repo.UpdateNode(tc.ctx, node))
	require.NoError(t, repo.ReindexSubtree(tc.ctx, subcounty, 0))

	reindexed, err := repo.GetNode(tc.ctx, ward)
	require.NoError(t, err)
	assert.Equal(t, 1, reindexed.LevelIndex)

	untouched, err := repo.GetNode(tc.ctx, county)
	require.NoError(t, err)
	assert.Equal(t, 0, untouched.LevelIndex)
}

func TestCoverageRepository_DeleteGuards(t *testing.T) {
	tc := setupRepoTest(t)
	repo := NewCoverageRepository(tc.pool)

	schemeID := tc.seedScheme("Admin Units")
	county := tc.seedNode(schemeID, nil, "Mombasa", 0)
	ward := tc.seedNode(schemeID, &county, "Nyali", 1)

	t.Run("HasChildren", func(t *testing.T) {
		has, err := repo.HasChildren(tc.ctx, county)
		require.NoError(t, err)
		assert.True(t, has)

		has, err = repo.HasChildren(tc.ctx, ward)
		require.NoError(t, err)
		assert.False(t, has)
	})

	t.Run("CountReferencesSeesAssignments", func(t *testing.T) {
		count, err := repo.CountReferences(tc.ctx, ward)
		require.NoError(t, err)
		assert.Equal(t, 0, count)

		projectID := tc.seedProject("Ward Sweep", "WSW01")
		enumeratorID := tc.seedEnumerator(projectID, "Jane Field", "jane.field")
		assignmentID := tc.seedAssignment(projectID, enumeratorID, 1, "WSW01-EN-0001-AA")
		_, err = tc.pool.Exec(tc.ctx,
			`UPDATE assignments SET coverage_node_id = $2 WHERE id = $1`, assignmentID, ward)
		require.NoError(t, err)

		count, err = repo.CountReferences(tc.ctx, ward)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("DeleteLeaf", func(t *testing.T) {
		leaf := tc.seedNode(schemeID, &county, "Kongowea", 1)
		require.NoError(t, repo.DeleteNode(tc.ctx, leaf))

		_, err := repo.GetNode(tc.ctx, leaf)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)

		err = repo.DeleteNode(tc.ctx, leaf)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

package player

// RichQuery asks for the display name and the 30-day price chart of the
// player's most recent card.
const RichQuery = `
query PlayerPriceHistory($slug: String!) {
  player(slug: $slug) {
    displayName
    cards(first: 1) {
      nodes {
        priceChart(period: THIRTY_DAYS) {
          date
          avgPrice
        }
      }
    }
  }
}
`

// FallbackQuery asks only for the display name.
const FallbackQuery = `
query PlayerBasic($slug: String!) {
  player(slug: $slug) {
    displayName
  }
}
`

package profile

// DefaultText is the guidance document used until the user writes one
const DefaultText = `# Email Classification Profile

## Spam Patterns
- (Add patterns as you mark emails as spam)

## Important Signals
- Emails mentioning my name directly in body are important
- Replies to emails I sent are important

## Label Rules

## Learned Corrections
`

